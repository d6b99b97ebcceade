// Package profile holds applicant profiles: the personal data and supporting
// documents a service request is validated against.
package profile

import (
	"strings"
	"time"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

// DocumentKind classifies a supporting document.
type DocumentKind string

const (
	DocumentBirthCertificate DocumentKind = "birth_certificate"
	DocumentProofOfResidence DocumentKind = "proof_of_residence"
	DocumentPhotoID          DocumentKind = "photo_id"
	DocumentPassportPhoto    DocumentKind = "passport_photo"
)

// DocumentStatus is the validation state of one document.
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentValidated DocumentStatus = "validated"
	DocumentRejected  DocumentStatus = "rejected"
)

// Document is one supporting document attached to a profile. The engine
// tracks validation status only; binary content lives elsewhere.
type Document struct {
	Kind        DocumentKind   `json:"kind"`
	Reference   string         `json:"reference"`
	Status      DocumentStatus `json:"status"`
	ValidatedBy string         `json:"validated_by,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Profile is an applicant's personal record.
type Profile struct {
	ID          id.ProfileID
	Actor       id.ActorID
	FullName    string
	DateOfBirth string // YYYY-MM-DD
	Nationality id.CountryCode
	Email       string
	Phone       string
	Address     string
	Documents   []Document
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// requiredFields returns the personal fields counted towards completion.
func (p *Profile) requiredFields() []string {
	return []string{
		p.FullName,
		p.DateOfBirth,
		p.Nationality.String(),
		p.Email,
		p.Phone,
		p.Address,
	}
}

// Completion returns the profile's completion percentage. Only a profile with
// every required field filled reaches 100.
func (p *Profile) Completion() int {
	fields := p.requiredFields()
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return filled * 100 / len(fields)
}

// DocumentsValidated reports whether the profile carries documents and every
// one of them has passed validation.
func (p *Profile) DocumentsValidated() bool {
	if len(p.Documents) == 0 {
		return false
	}
	for _, d := range p.Documents {
		if d.Status != DocumentValidated {
			return false
		}
	}
	return true
}

// SetDocumentStatus updates the validation state of the document of the given
// kind. Returns CodeNotFound when the profile has no such document.
func (p *Profile) SetDocumentStatus(kind DocumentKind, status DocumentStatus, validatedBy string, now time.Time) error {
	for i := range p.Documents {
		if p.Documents[i].Kind == kind {
			p.Documents[i].Status = status
			p.Documents[i].ValidatedBy = validatedBy
			p.Documents[i].UpdatedAt = now
			p.UpdatedAt = now
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeNotFound, "profile has no %s document", kind)
}

// AttachDocument adds or replaces the document of the given kind, resetting
// its validation state to pending.
func (p *Profile) AttachDocument(kind DocumentKind, reference string, now time.Time) {
	doc := Document{Kind: kind, Reference: reference, Status: DocumentPending, UpdatedAt: now}
	for i := range p.Documents {
		if p.Documents[i].Kind == kind {
			p.Documents[i] = doc
			p.UpdatedAt = now
			return
		}
	}
	p.Documents = append(p.Documents, doc)
	p.UpdatedAt = now
}
