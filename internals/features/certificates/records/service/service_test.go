package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"srms_backend/internals/constants"
	"srms_backend/internals/databases/testdb"
	"srms_backend/internals/features/certificates/fingerprint"
	"srms_backend/internals/features/certificates/ledger"
	model "srms_backend/internals/features/certificates/records/model"
	"srms_backend/internals/features/certificates/records/repository"
	"srms_backend/internals/features/certificates/records/scheduler"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
	"srms_backend/internals/helpers/blob"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	db       *gorm.DB
	store    *repository.RecordStore
	blobs    *blob.MemoryStore
	ledger   *ledger.MemoryLedger
	issuer   *IssuanceService
	verifier *VerificationService
	files    *FileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{
		db:     db,
		store:  repository.NewRecordStore(db),
		blobs:  blob.NewMemoryStore(),
		ledger: ledger.NewMemoryLedger(),
	}
	f.issuer = NewIssuanceService(f.store, f.blobs, f.ledger, IssuanceOptions{
		LedgerTimeout: time.Second,
		PublicBaseURL: "https://srms.example.edu",
	})
	f.verifier = NewVerificationService(f.store, f.ledger, "https://srms.example.edu", time.Second)
	f.files = NewFileService(f.store, f.blobs)

	email := "s1@example.edu"
	dept := "Physics"
	hash := "$2a$10$notarealhash"
	require.NoError(t, db.Create(&studentModel.StudentModel{
		StudentID:           "S1",
		StudentName:         "Ada",
		StudentEmail:        &email,
		StudentDepartment:   &dept,
		StudentPasswordHash: &hash,
	}).Error)
	require.NoError(t, db.Create(&studentModel.StudentModel{StudentID: "S2", StudentName: "Grace"}).Error)
	return f
}

func docs(cert, report, photo string) map[constants.DocumentKind]Document {
	return map[constants.DocumentKind]Document{
		constants.DocCertificate: {FileName: "certificate.pdf", Data: []byte(cert)},
		constants.DocReportCard:  {FileName: "report.pdf", Data: []byte(report)},
		constants.DocPhoto:       {FileName: "photo.jpg", Data: []byte(photo)},
	}
}

func issueReq(studentID string, d map[constants.DocumentKind]Document) IssueRequest {
	year := 2024
	pct := 87.5
	return IssueRequest{
		StudentID:      studentID,
		Documents:      d,
		GraduationYear: &year,
		Percentage:     &pct,
		Extra:          map[string]interface{}{"honours": "cum laude"},
		IssuedBy:       "admin-1",
	}
}

func recordCount(t *testing.T, f *fixture, studentID string) int64 {
	t.Helper()
	n, err := f.store.CountRecords(context.Background(), studentID)
	require.NoError(t, err)
	return n
}

/* =========================
   Issuance
   ========================= */

func TestIssueDerivesRecordIDFromDocuments(t *testing.T) {
	f := newFixture(t)

	res, err := f.issuer.Issue(context.Background(), issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)

	want, err := fingerprint.DeriveRecordID("S1", []fingerprint.Fingerprint{
		fingerprint.HashDocument([]byte("A")),
		fingerprint.HashDocument([]byte("B")),
		fingerprint.HashDocument([]byte("C")),
	})
	require.NoError(t, err)
	assert.Equal(t, want, res.RecordID)
	assert.True(t, strings.HasPrefix(res.LedgerReference, "0x"))
	assert.Equal(t, 1, f.ledger.Writes())

	recs, err := f.store.ListRecords(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.StatusOnChain, recs[0].RecordStatus)
	assert.Equal(t, res.LedgerReference, *recs[0].RecordLedgerReference)
	assert.Equal(t, 2024, *recs[0].RecordGraduationYear)
	require.Len(t, recs[0].Documents, 3)
	assert.Equal(t, fingerprint.HashDocument([]byte("B")).String(), recs[0].Documents[1].DocumentFingerprint)

	assert.ElementsMatch(t, []string{
		"S1/" + want + "/certificate.pdf",
		"S1/" + want + "/reportCard.pdf",
		"S1/" + want + "/photo.jpg",
		"S1/" + want + "/qr.png",
	}, f.blobs.Keys())
}

func TestIssueTwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)

	_, err = f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 1, f.ledger.Writes(), "duplicate must not reach the ledger")
	assert.EqualValues(t, 1, recordCount(t, f, "S1"))
}

func TestSameDocumentsDifferentStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)
	b, err := f.issuer.Issue(ctx, issueReq("S2", docs("A", "B", "C")))
	require.NoError(t, err)
	assert.NotEqual(t, a.RecordID, b.RecordID)
}

func TestIssueLedgerFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.SetFail(ledger.ErrUnavailable)

	_, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrLedgerUnavailable)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.Zero(t, recordCount(t, f, "S1"))

	orphans, err := f.store.ListOrphansBefore(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, orphans, 4)
	for _, o := range orphans {
		assert.Equal(t, model.OrphanReasonLedgerFailed, o.OrphanReason)
	}

	// the same request succeeds once the ledger is back
	f.ledger.SetFail(nil)
	_, err = f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)
	assert.EqualValues(t, 1, recordCount(t, f, "S1"))
}

func TestRetryKeepsObjectsFromReaper(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.SetFail(ledger.ErrUnavailable)

	_, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.Error(t, err)
	keys := f.blobs.Keys()
	require.Len(t, keys, 4)

	// the retry stalls in the ledger write after its uploads
	f.ledger.SetFail(nil)
	f.ledger.Delay = 300 * time.Millisecond
	done := make(chan error, 1)
	go func() {
		_, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
		done <- err
	}()

	require.Eventually(t, func() bool {
		left, err := f.store.ListOrphansBefore(ctx, time.Now().Add(time.Hour), 10)
		return err == nil && len(left) == 0
	}, time.Second, 5*time.Millisecond)

	reaper := scheduler.NewOrphanReaper(f.store, f.blobs, scheduler.ReaperConfig{GracePeriod: time.Nanosecond})
	st, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Deleted)

	require.NoError(t, <-done)
	assert.ElementsMatch(t, keys, f.blobs.Keys())
	for _, k := range keys {
		_, _, err := f.blobs.Get(ctx, k)
		assert.NoError(t, err, k)
	}
}

func TestIssueLedgerTimeout(t *testing.T) {
	f := newFixture(t)
	f.ledger.Delay = 500 * time.Millisecond
	issuer := NewIssuanceService(f.store, f.blobs, f.ledger, IssuanceOptions{LedgerTimeout: 20 * time.Millisecond})

	_, err := issuer.Issue(context.Background(), issueReq("S1", docs("A", "B", "C")))
	assert.ErrorIs(t, err, apperror.ErrLedgerUnavailable)
	assert.Zero(t, recordCount(t, f, "S1"))
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := docs("A", "B", "C")
	delete(missing, constants.DocPhoto)
	_, err := f.issuer.Issue(ctx, issueReq("S1", missing))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	empty := docs("A", "", "C")
	_, err = f.issuer.Issue(ctx, issueReq("S1", empty))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	extra := docs("A", "B", "C")
	extra[constants.DocQRCode] = Document{Data: []byte("png")}
	_, err = f.issuer.Issue(ctx, issueReq("S1", extra))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	bad := issueReq("S1", docs("A", "B", "C"))
	pct := 101.0
	bad.Percentage = &pct
	_, err = f.issuer.Issue(ctx, bad)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	bad = issueReq("S1", docs("A", "B", "C"))
	year := 1850
	bad.GraduationYear = &year
	_, err = f.issuer.Issue(ctx, bad)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.issuer.Issue(ctx, issueReq("nobody", docs("A", "B", "C")))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Empty(t, f.blobs.Keys(), "validation failures have no side effects")
	assert.Zero(t, f.ledger.Writes())
}

func TestIssueStoreFailureSkipsLedger(t *testing.T) {
	f := newFixture(t)
	f.blobs.PutErr = assert.AnError

	_, err := f.issuer.Issue(context.Background(), issueReq("S1", docs("A", "B", "C")))
	assert.ErrorIs(t, err, apperror.ErrInternal)
	assert.Zero(t, f.ledger.Writes())
	assert.Zero(t, recordCount(t, f, "S1"))
}

func TestConcurrentDoubleSubmit(t *testing.T) {
	f := newFixture(t)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.issuer.Issue(context.Background(), issueReq("S1", docs("A", "B", "C")))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.EqualValues(t, 1, recordCount(t, f, "S1"))
}

/* =========================
   Verification
   ========================= */

func TestVerifyDisclosesOnlyTheRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, issueReq("S1", docs("X", "Y", "Z")))
	require.NoError(t, err)

	res, err := f.verifier.Verify(ctx, strings.ToUpper(first.RecordID), VerifyOptions{})
	require.NoError(t, err)
	require.True(t, res.Valid)
	assert.Equal(t, "on-chain", res.Status)
	assert.Equal(t, "S1", res.Student.StudentID)
	assert.Equal(t, "Ada", res.Student.Name)
	assert.Equal(t, "Physics", res.Student.Department)
	assert.Equal(t, first.LedgerReference, res.Record.LedgerReference)
	assert.Len(t, res.Record.Documents, 3)
	assert.Equal(t, "https://srms.example.edu/api/files/certificate/"+first.RecordID, res.Record.Files["certificate"])
	assert.Contains(t, res.Record.Files, "qr")
	assert.Nil(t, res.ChainConfirmed)

	raw, err := sonic.Marshal(res)
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "s1@example.edu")
	assert.NotContains(t, body, "notarealhash")
	assert.NotContains(t, body, second.RecordID)
	assert.NotContains(t, body, "S1/")
}

func TestVerifyUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{strings.Repeat("0", 64), "not-a-hash", "", strings.Repeat("g", 64)} {
		res, err := f.verifier.Verify(ctx, id, VerifyOptions{ConfirmOnChain: true})
		require.NoError(t, err, id)
		assert.False(t, res.Valid, id)
		assert.Equal(t, "not-found", res.Status, id)
		assert.Nil(t, res.Student)
		assert.Nil(t, res.Record)
	}
}

func TestVerifyNotOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := strings.Repeat("ab", 32)
	require.NoError(t, f.store.AppendRecord(ctx, "S1", &model.StudentRecordModel{
		RecordID:       id,
		RecordStatus:   model.StatusPending,
		RecordIssuedBy: "admin-1",
		RecordIssuedAt: time.Now().UTC(),
	}))

	res, err := f.verifier.Verify(ctx, id, VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "not-on-chain", res.Status)
	assert.Nil(t, res.Student)
}

func TestVerifyConfirmOnChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)

	res, err := f.verifier.Verify(ctx, issued.RecordID, VerifyOptions{ConfirmOnChain: true})
	require.NoError(t, err)
	require.NotNil(t, res.ChainConfirmed)
	assert.True(t, *res.ChainConfirmed)
	assert.Empty(t, res.ChainError)

	f.ledger.SetFail(ledger.ErrUnavailable)
	res, err = f.verifier.Verify(ctx, issued.RecordID, VerifyOptions{ConfirmOnChain: true})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.ChainConfirmed)
	assert.False(t, *res.ChainConfirmed)
	assert.NotEmpty(t, res.ChainError)
}

func pendingRecord(t *testing.T, f *fixture, id string) {
	t.Helper()
	require.NoError(t, f.store.AppendRecord(context.Background(), "S1", &model.StudentRecordModel{
		RecordID:       id,
		RecordStatus:   model.StatusPending,
		RecordIssuedBy: "admin-1",
		RecordIssuedAt: time.Now().UTC(),
	}))
}

func TestAdvanceStatusWritesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := strings.Repeat("cd", 32)
	pendingRecord(t, f, id)

	rec, err := f.issuer.AdvanceStatus(ctx, "S1", id, model.StatusVerified)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, rec.RecordStatus)
	assert.Nil(t, rec.RecordLedgerReference)
	assert.Zero(t, f.ledger.Writes())

	rec, err = f.issuer.AdvanceStatus(ctx, "S1", id, model.StatusOnChain)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnChain, rec.RecordStatus)
	require.NotNil(t, rec.RecordLedgerReference)
	assert.Equal(t, 1, f.ledger.Writes())

	atts, err := f.ledger.Read(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, id, atts[0].RecordID)
	assert.Equal(t, atts[0].Reference, *rec.RecordLedgerReference)

	res, err := f.verifier.Verify(ctx, id, VerifyOptions{ConfirmOnChain: true})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.ChainConfirmed)
	assert.True(t, *res.ChainConfirmed)

	_, err = f.issuer.AdvanceStatus(ctx, "S1", id, model.StatusVerified)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Equal(t, 1, f.ledger.Writes())
}

func TestAdvanceStatusLedgerFailureKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := strings.Repeat("ef", 32)
	pendingRecord(t, f, id)
	f.ledger.SetFail(ledger.ErrUnavailable)

	_, err := f.issuer.AdvanceStatus(ctx, "S1", id, model.StatusOnChain)
	assert.ErrorIs(t, err, apperror.ErrLedgerUnavailable)

	rec, err := f.store.FindRecord(ctx, "S1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.RecordStatus)
	assert.Nil(t, rec.RecordLedgerReference)

	res, err := f.verifier.Verify(ctx, id, VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	_, err = f.issuer.AdvanceStatus(ctx, "S1", strings.Repeat("9", 64), model.StatusVerified)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = f.issuer.AdvanceStatus(ctx, "S1", id, model.RecordStatus("archived"))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestVerifyDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)

	res, err := f.verifier.VerifyDocuments(ctx, "S1", docs("A", "B", "C"), VerifyOptions{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, issued.RecordID, res.RecordID)

	res, err = f.verifier.VerifyDocuments(ctx, "S1", docs("A", "B", "tampered"), VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = f.verifier.VerifyDocuments(ctx, "S2", docs("A", "B", "C"), VerifyOptions{})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	missing := docs("A", "B", "C")
	delete(missing, constants.DocCertificate)
	_, err = f.verifier.VerifyDocuments(ctx, "S1", missing, VerifyOptions{})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestAttestations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, issueReq("S1", docs("A", "B", "C")))
	require.NoError(t, err)

	atts, err := f.verifier.Attestations(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, issued.RecordID, atts[0].RecordID)
	assert.True(t, atts[0].InStore)

	_, err = f.verifier.Attestations(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	f.ledger.SetFail(ledger.ErrUnavailable)
	_, err = f.verifier.Attestations(ctx, "S1")
	assert.ErrorIs(t, err, apperror.ErrLedgerUnavailable)
}

/* =========================
   Files
   ========================= */

func TestFileAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.issuer.Issue(ctx, issueReq("S1", docs("%PDF-1.4 cert", "B", "C")))
	require.NoError(t, err)

	file, err := f.files.Open(ctx, constants.DocCertificate, issued.RecordID, Requester{Role: constants.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 cert", string(file.Data))
	assert.Equal(t, "application/pdf", file.ContentType)

	qr, err := f.files.Open(ctx, constants.DocQRCode, issued.RecordID, Requester{Role: constants.RoleStudent, StudentID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", qr.ContentType)
	assert.NotEmpty(t, qr.Data)

	_, err = f.files.Open(ctx, constants.DocPhoto, issued.RecordID, Requester{Role: constants.RoleStudent, StudentID: "S2"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.files.Open(ctx, constants.DocPhoto, strings.Repeat("0", 64), Requester{Role: constants.RoleAdmin})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.blobs.Delete(ctx, "S1/"+issued.RecordID+"/photo.jpg"))
	_, err = f.files.Open(ctx, constants.DocPhoto, issued.RecordID, Requester{Role: constants.RoleAdmin})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
