// file: internals/features/certificates/records/service/file_service.go
package service

import (
	"context"
	"strings"

	"srms_backend/internals/constants"
	model "srms_backend/internals/features/certificates/records/model"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
	"srms_backend/internals/helpers/blob"
)

type FileStore interface {
	FindStudentByRecordID(ctx context.Context, recordID string) (*studentModel.StudentModel, *model.StudentRecordModel, error)
}

// Requester is the authenticated caller of a file route.
type Requester struct {
	Role      string
	StudentID string
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type FileService struct {
	store FileStore
	blobs blob.Store
}

func NewFileService(store FileStore, blobs blob.Store) *FileService {
	return &FileService{store: store, blobs: blobs}
}

// Open returns one file of a record. Admins read everything; students read
// only their own records.
func (s *FileService) Open(ctx context.Context, kind constants.DocumentKind, recordID string, who Requester) (*File, error) {
	if !kind.Valid() {
		return nil, apperror.NotFound("unknown file kind")
	}
	recordID = strings.ToLower(strings.TrimSpace(recordID))

	stu, rec, err := s.store.FindStudentByRecordID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if who.Role != constants.RoleAdmin && who.StudentID != stu.StudentID {
		return nil, apperror.Forbidden(constants.RoleErrorOwnFiles("files"))
	}

	key := objectKeyFor(rec, kind)
	if key == "" {
		return nil, apperror.NotFound("file not found")
	}
	data, ct, err := s.blobs.Get(ctx, key)
	if blob.IsNotFound(err) {
		return nil, apperror.NotFound("file not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "read file", err)
	}
	if ct == "" {
		ct = kind.ContentType()
	}
	return &File{Name: kind.FileName(), ContentType: ct, Data: data}, nil
}

func objectKeyFor(rec *model.StudentRecordModel, kind constants.DocumentKind) string {
	if kind == constants.DocQRCode {
		if rec.RecordQRObjectKey == nil {
			return ""
		}
		return *rec.RecordQRObjectKey
	}
	for _, d := range rec.Documents {
		if d.DocumentKind == string(kind) {
			return d.DocumentObjectKey
		}
	}
	return ""
}
