package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// AccountRef is the identifying slice of a CRM account record.
type AccountRef struct {
	CRMID string
	Name  string
}

type accountRecord struct {
	AccountID string  `json:"accountid"`
	Name      string  `json:"name"`
	ParentID  *string `json:"_parentaccountid_value"`
}

// AccountDirectory resolves CRM account ids to their organisation
// hierarchy. Built from an exported account list, two levels deep.
type AccountDirectory struct {
	byID map[string]accountRecord
}

// LoadAccountDirectory reads an account export of the form
// {"value": [{"accountid", "name", "_parentaccountid_value"}, ...]}.
func LoadAccountDirectory(path string) (*AccountDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("account directory: %w", err)
	}
	var payload struct {
		Value []accountRecord `json:"value"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("account directory %s: %w", path, err)
	}

	dir := &AccountDirectory{byID: make(map[string]accountRecord, len(payload.Value))}
	for _, record := range payload.Value {
		dir.byID[record.AccountID] = record
	}
	return dir, nil
}

// Lineage returns the accounts an id belongs to, top level first. A unit
// under an organisation yields two entries, a top level account one.
func (d *AccountDirectory) Lineage(accountID string) ([]AccountRef, error) {
	record, ok := d.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown account id %s", ErrLinkage, accountID)
	}
	if record.ParentID == nil {
		return []AccountRef{{CRMID: record.AccountID, Name: record.Name}}, nil
	}
	parent, ok := d.byID[*record.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s references unknown parent %s", ErrLinkage, accountID, *record.ParentID)
	}
	return []AccountRef{
		{CRMID: parent.AccountID, Name: parent.Name},
		{CRMID: record.AccountID, Name: record.Name},
	}, nil
}

// ContactInfo is the identifying slice of a CRM contact record.
type ContactInfo struct {
	Name          string
	Email         string
	CRMID         string
	Unit          string
	UnitAccountID string
}

// ContactRoster resolves contact emails to CRM contact records.
type ContactRoster struct {
	byEmail map[string]ContactInfo
}

// LoadContactRoster reads a contact export of the form
// {"value": [{"fullname", "email", "contactid", "unit", "unitAccountID"}, ...]}.
func LoadContactRoster(path string) (*ContactRoster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contact roster: %w", err)
	}
	var payload struct {
		Value []struct {
			FullName      string `json:"fullname"`
			Email         string `json:"email"`
			ContactID     string `json:"contactid"`
			Unit          string `json:"unit"`
			UnitAccountID string `json:"unitAccountID"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("contact roster %s: %w", path, err)
	}

	roster := &ContactRoster{byEmail: make(map[string]ContactInfo, len(payload.Value))}
	for _, record := range payload.Value {
		roster.byEmail[record.Email] = ContactInfo{
			Name:          record.FullName,
			Email:         record.Email,
			CRMID:         record.ContactID,
			Unit:          record.Unit,
			UnitAccountID: record.UnitAccountID,
		}
	}
	return roster, nil
}

// Get finds a contact by email.
func (r *ContactRoster) Get(email string) (ContactInfo, error) {
	info, ok := r.byEmail[email]
	if !ok {
		return ContactInfo{}, fmt.Errorf("%w: no contact with email %s", ErrLinkage, email)
	}
	return info, nil
}
