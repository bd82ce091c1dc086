package models

type EmergencyContact struct {
	PatientID    string `json:"patient_id"`
	ContactID    string `json:"contact_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	PushToken    string `json:"push_token,omitempty"` // device token registered by the contact's app
}
