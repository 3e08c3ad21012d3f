package constants

// DocumentKind names one constituent document of an issued record.
type DocumentKind string

const (
	DocCertificate DocumentKind = "certificate"
	DocReportCard  DocumentKind = "report_card"
	DocPhoto       DocumentKind = "photo"

	// DocQRCode is generated at issuance and never part of the record identity.
	DocQRCode DocumentKind = "qr"
)

// RequiredDocumentKinds is the canonical fingerprint order for record ids.
// Changing it changes every derived record id.
var RequiredDocumentKinds = []DocumentKind{
	DocCertificate,
	DocReportCard,
	DocPhoto,
}

type documentSpec struct {
	FormField   string // multipart field name
	FileName    string // object name under <student_id>/<record_id>/
	URLSlug     string // segment in /api/files/:kind/:recordId
	ContentType string // fallback when sniffing is inconclusive
}

var documentSpecs = map[DocumentKind]documentSpec{
	DocCertificate: {FormField: "certificate", FileName: "certificate.pdf", URLSlug: "certificate", ContentType: "application/pdf"},
	DocReportCard:  {FormField: "reportCard", FileName: "reportCard.pdf", URLSlug: "report", ContentType: "application/pdf"},
	DocPhoto:       {FormField: "photo", FileName: "photo.jpg", URLSlug: "photo", ContentType: "image/jpeg"},
	DocQRCode:      {FormField: "", FileName: "qr.png", URLSlug: "qr", ContentType: "image/png"},
}

func (k DocumentKind) String() string { return string(k) }

func (k DocumentKind) Valid() bool {
	_, ok := documentSpecs[k]
	return ok
}

func (k DocumentKind) FormField() string   { return documentSpecs[k].FormField }
func (k DocumentKind) FileName() string    { return documentSpecs[k].FileName }
func (k DocumentKind) URLSlug() string     { return documentSpecs[k].URLSlug }
func (k DocumentKind) ContentType() string { return documentSpecs[k].ContentType }

// DocumentKindFromSlug resolves the :kind path segment of the file routes.
func DocumentKindFromSlug(slug string) (DocumentKind, bool) {
	for k, s := range documentSpecs {
		if s.URLSlug == slug {
			return k, true
		}
	}
	return "", false
}
