package models

// Prospect is one contact record extracted from an image.
// JSON keys match the field names requested from the extraction service.
type Prospect struct {
	Name        string `json:"Name" msgpack:"Name"`
	PhoneNumber string `json:"PhoneNumber" msgpack:"PhoneNumber"`
	Company     string `json:"Company" msgpack:"Company"`
	Email       string `json:"Email" msgpack:"Email"`
	Address     string `json:"Address" msgpack:"Address"`
}

// ProspectColumns are the display headers in field order.
var ProspectColumns = []string{"Name", "Phone Number", "Company", "Email", "Address"}

// Fields returns the record values in column order.
func (p Prospect) Fields() []string {
	return []string{p.Name, p.PhoneNumber, p.Company, p.Email, p.Address}
}
