package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

func fullProfile() *Profile {
	return &Profile{
		ID:          id.NewProfileID(),
		Actor:       id.NewActorID(),
		FullName:    "Eleni Papadopoulou",
		DateOfBirth: "1988-04-12",
		Nationality: id.CountryCode("GR"),
		Email:       "eleni@example.org",
		Phone:       "+30 210 0000000",
		Address:     "12 Ermou St, Athens",
	}
}

func TestCompletion(t *testing.T) {
	p := fullProfile()
	assert.Equal(t, 100, p.Completion())

	p.Phone = ""
	assert.Equal(t, 83, p.Completion())

	p.Email = "   "
	assert.Equal(t, 66, p.Completion(), "whitespace-only fields do not count")

	assert.Equal(t, 0, (&Profile{}).Completion())
}

func TestDocumentsValidated(t *testing.T) {
	p := fullProfile()
	assert.False(t, p.DocumentsValidated(), "no documents means not validated")

	now := time.Now()
	p.AttachDocument(DocumentPhotoID, "doc-1", now)
	p.AttachDocument(DocumentProofOfResidence, "doc-2", now)
	assert.False(t, p.DocumentsValidated())

	require.NoError(t, p.SetDocumentStatus(DocumentPhotoID, DocumentValidated, "agent-1", now))
	assert.False(t, p.DocumentsValidated(), "one pending document keeps the set unvalidated")

	require.NoError(t, p.SetDocumentStatus(DocumentProofOfResidence, DocumentValidated, "agent-1", now))
	assert.True(t, p.DocumentsValidated())

	require.NoError(t, p.SetDocumentStatus(DocumentPhotoID, DocumentRejected, "agent-2", now))
	assert.False(t, p.DocumentsValidated())
}

func TestSetDocumentStatusUnknownKind(t *testing.T) {
	p := fullProfile()

	err := p.SetDocumentStatus(DocumentBirthCertificate, DocumentValidated, "agent-1", time.Now())

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestAttachDocumentReplacesAndResets(t *testing.T) {
	p := fullProfile()
	now := time.Now()
	p.AttachDocument(DocumentPhotoID, "doc-1", now)
	require.NoError(t, p.SetDocumentStatus(DocumentPhotoID, DocumentValidated, "agent-1", now))

	p.AttachDocument(DocumentPhotoID, "doc-1-v2", now.Add(time.Hour))

	require.Len(t, p.Documents, 1)
	assert.Equal(t, "doc-1-v2", p.Documents[0].Reference)
	assert.Equal(t, DocumentPending, p.Documents[0].Status, "re-uploading resets validation")
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	p := fullProfile()
	now := time.Now()
	p.AttachDocument(DocumentPhotoID, "doc-1", now)
	require.NoError(t, store.Save(ctx, p))

	found, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	found.Documents[0].Status = DocumentValidated

	again, err := store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, DocumentPending, again.Documents[0].Status)

	byActor, err := store.FindByActor(ctx, p.Actor)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byActor.ID)
}
