// file: internals/features/certificates/records/service/documents.go
package service

import (
	"fmt"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/fingerprint"
	"srms_backend/internals/helpers/apperror"
)

// Document is one uploaded file.
type Document struct {
	FileName string
	Data     []byte
}

// hashedDocument is a document with its fingerprint, in canonical position.
type hashedDocument struct {
	Kind        constants.DocumentKind
	Position    int
	Data        []byte
	Fingerprint fingerprint.Fingerprint
	CID         string
	ContentType string
}

// hashDocuments checks that every required document is present and
// non-empty, then fingerprints them in canonical order.
func hashDocuments(docs map[constants.DocumentKind]Document) ([]hashedDocument, []fingerprint.Fingerprint, error) {
	for kind := range docs {
		if !isRequired(kind) {
			return nil, nil, apperror.InvalidInput(fmt.Sprintf("unexpected document kind %q", kind))
		}
	}

	out := make([]hashedDocument, 0, len(constants.RequiredDocumentKinds))
	fps := make([]fingerprint.Fingerprint, 0, len(constants.RequiredDocumentKinds))
	for i, kind := range constants.RequiredDocumentKinds {
		doc, ok := docs[kind]
		if !ok || len(doc.Data) == 0 {
			return nil, nil, apperror.InvalidInput(fmt.Sprintf("missing document: %s", kind.FormField()))
		}

		fp := fingerprint.HashDocument(doc.Data)
		c, err := fingerprint.DocumentCID(doc.Data)
		if err != nil {
			return nil, nil, apperror.Wrap(apperror.KindInternal, "content address", err)
		}
		out = append(out, hashedDocument{
			Kind:        kind,
			Position:    i,
			Data:        doc.Data,
			Fingerprint: fp,
			CID:         c.String(),
			ContentType: constants.DetectContentType(kind, doc.FileName, doc.Data),
		})
		fps = append(fps, fp)
	}
	return out, fps, nil
}

func isRequired(kind constants.DocumentKind) bool {
	for _, k := range constants.RequiredDocumentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// deriveRecordID maps deriver errors to InvalidInput.
func deriveRecordID(studentID string, fps []fingerprint.Fingerprint) (string, error) {
	id, err := fingerprint.DeriveRecordID(studentID, fps)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInvalidInput, "cannot derive record id", err)
	}
	return id, nil
}
