// file: internals/features/certificates/records/dto/files_dto.go
package dto

import (
	"strings"

	"srms_backend/internals/constants"
	model "srms_backend/internals/features/certificates/records/model"
)

// FileURL is the retrieval path of one file of a record, absolute when a
// public base URL is configured.
func FileURL(publicBaseURL string, kind constants.DocumentKind, recordID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/api/files/" + kind.URLSlug() + "/" + recordID
}

// FileLinks lists the files a record actually has, keyed by URL slug.
func FileLinks(publicBaseURL string, m *model.StudentRecordModel) map[string]string {
	out := make(map[string]string, len(m.Documents)+1)
	for _, d := range m.Documents {
		kind := constants.DocumentKind(d.DocumentKind)
		if !kind.Valid() {
			continue
		}
		out[kind.URLSlug()] = FileURL(publicBaseURL, kind, m.RecordID)
	}
	if m.RecordQRObjectKey != nil {
		out[constants.DocQRCode.URLSlug()] = FileURL(publicBaseURL, constants.DocQRCode, m.RecordID)
	}
	return out
}
