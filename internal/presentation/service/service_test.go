package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcanchor/internal/did"
	didmocks "vcanchor/internal/did/mocks"
	"vcanchor/internal/presentation/models"
	"vcanchor/internal/presentation/service/mocks"
	"vcanchor/internal/presentation/store"
	"vcanchor/internal/signature"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/audit/publisher"
	auditmemory "vcanchor/pkg/platform/audit/store/memory"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

const (
	holderDID   = "did:example:holder"
	issuerDID   = "did:example:issuer"
	verifierDID = "did:example:verifier"
)

type identity struct {
	did  string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newIdentity(s *ServiceSuite, didStr string) identity {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	return identity{did: didStr, pub: pub, priv: priv}
}

func (i identity) key() *did.Key {
	return &did.Key{DID: i.did, KeyID: i.did + "#key-1", PublicKey: i.pub, Status: did.StatusActive}
}

func (i identity) sign(s *ServiceSuite, doc map[string]any, purpose string) map[string]any {
	signed, err := signature.SignEd25519Proof(doc, map[string]any{
		"type":               signature.ProofTypeEd25519Signature2020,
		"verificationMethod": i.did + "#key-1",
		"proofPurpose":       purpose,
	}, i.priv)
	s.Require().NoError(err)
	return signed
}

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *didmocks.MockResolver
	store    *store.InMemoryStore
	events   *auditmemory.InMemoryStore
	service  *Service
	ctx      context.Context
	holder   identity
	issuer   identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = didmocks.NewMockResolver(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.events = auditmemory.NewInMemoryStore()

	var err error
	s.service, err = New(s.store, s.resolver,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.holder = newIdentity(s, holderDID)
	s.issuer = newIdentity(s, issuerDID)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) credential(subject string) map[string]any {
	return s.issuer.sign(s, map[string]any{
		"@context":          []any{"https://www.w3.org/2018/credentials/v1"},
		"id":                "urn:uuid:" + subject,
		"type":              []any{"VerifiableCredential", "UniversityDegreeCredential"},
		"issuer":            issuerDID,
		"issuanceDate":      "2026-01-01T00:00:00Z",
		"credentialSubject": map[string]any{"id": holderDID, "degree": subject},
	}, "assertionMethod")
}

func (s *ServiceSuite) presentation(creds ...any) []byte {
	vp := s.holder.sign(s, map[string]any{
		"@context":             []any{"https://www.w3.org/2018/credentials/v1"},
		"type":                 []any{"VerifiablePresentation"},
		"holder":               holderDID,
		"verifiableCredential": creds,
	}, "authentication")
	b, err := json.Marshal(vp)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) storeShare(vp []byte) *models.VPShare {
	share, err := s.service.StoreVP(s.ctx, holderDID, vp)
	s.Require().NoError(err)
	return share
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.resolver)
	s.Error(err)
	_, err = New(s.store, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestRequestVP() {
	req, err := s.service.RequestVP(s.ctx, holderDID, verifierDID, []string{"s1", "s2", "s1"})
	s.Require().NoError(err)
	s.Equal([]string{"s1", "s2"}, req.SchemaIDs)

	got, err := s.service.GetVPRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(verifierDID, got.VerifierDID)

	list, err := s.service.ListVPRequests(s.ctx, holderDID)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.service.RequestVP(s.ctx, holderDID, verifierDID, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	_, err = s.service.GetVPRequest(s.ctx, id.VPRequestID{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(s.events.Types(), audit.EventVPRequested)
}

func (s *ServiceSuite) TestStoreVPRequiresJSONObject() {
	for _, vp := range []string{`not json`, `[1]`, `"text"`, `null`} {
		_, err := s.service.StoreVP(s.ctx, holderDID, []byte(vp))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), vp)
	}
}

// A share is handed out exactly once.
func (s *ServiceSuite) TestGetVPIsOneTime() {
	share := s.storeShare([]byte(`{"type":"VerifiablePresentation"}`))

	got, err := s.service.GetVP(s.ctx, share.ID)
	s.Require().NoError(err)
	s.JSONEq(`{"type":"VerifiablePresentation"}`, string(got.VP))

	_, err = s.service.GetVP(s.ctx, share.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(s.events.Types(), audit.EventVPRetrieved)
}

func (s *ServiceSuite) TestGetVPConcurrentCallersReceiveOnce() {
	share := s.storeShare([]byte(`{"a":1}`))

	var (
		wg        sync.WaitGroup
		delivered atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.GetVP(s.ctx, share.ID); err == nil {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), delivered.Load())
}

func (s *ServiceSuite) TestVerifyValidPresentation() {
	share := s.storeShare(s.presentation(s.credential("bsc"), s.credential("msc")))
	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(s.issuer.key(), nil).Times(2)

	result, err := s.service.VerifyVP(s.ctx, share.ID)
	s.Require().NoError(err)
	s.True(result.VPValid, result.Reason)
	s.Require().Len(result.Credentials, 2)
	s.Equal("urn:uuid:bsc", result.Credentials[0].ID)
	s.Equal("urn:uuid:msc", result.Credentials[1].ID)
	s.True(result.AllValid())

	_, err = s.service.GetVP(s.ctx, share.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "verification consumes the share")
	_, err = s.service.VerifyVP(s.ctx, share.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(s.events.Types(), audit.EventVPVerified)
}

func (s *ServiceSuite) TestVerifyReportsTamperedCredential() {
	tampered := s.credential("bsc")
	tampered["credentialSubject"] = map[string]any{"id": holderDID, "degree": "phd"}
	share := s.storeShare(s.presentation(s.credential("msc"), tampered))

	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(s.issuer.key(), nil).Times(2)

	result, err := s.service.VerifyVP(s.ctx, share.ID)
	s.Require().NoError(err)
	s.True(result.VPValid, "the holder signed over the tampered credential")
	s.True(result.Credentials[0].Valid)
	s.False(result.Credentials[1].Valid)
	s.Equal(signature.ProofReasonSignature, result.Credentials[1].Reason)
	s.False(result.AllValid())
}

func (s *ServiceSuite) TestVerifyInvalidHolderStillConsumes() {
	s.Run("missing proof", func() {
		share := s.storeShare([]byte(`{"type":"VerifiablePresentation","holder":"` + holderDID + `"}`))
		s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)

		result, err := s.service.VerifyVP(s.ctx, share.ID)
		s.Require().NoError(err)
		s.False(result.VPValid)
		s.Equal(signature.ProofReasonMissingProof, result.Reason)
		_, err = s.store.FindShare(s.ctx, share.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
	s.Run("unknown holder", func() {
		share := s.storeShare(s.presentation())
		s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(nil, fmt.Errorf("resolve: %w", sentinel.ErrNotFound))

		result, err := s.service.VerifyVP(s.ctx, share.ID)
		s.Require().NoError(err)
		s.False(result.VPValid)
		s.Equal(models.ReasonHolderNotFound, result.Reason)
	})
	s.Run("deactivated holder", func() {
		share := s.storeShare(s.presentation())
		key := s.holder.key()
		key.Status = did.StatusDeactivated
		s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(key, nil)

		result, err := s.service.VerifyVP(s.ctx, share.ID)
		s.Require().NoError(err)
		s.Equal(models.ReasonHolderInactive, result.Reason)
	})
	s.Run("holder claims another DID", func() {
		vp := s.holder.sign(s, map[string]any{"holder": "did:example:someone-else"}, "authentication")
		b, err := json.Marshal(vp)
		s.Require().NoError(err)
		share := s.storeShare(b)

		result, err := s.service.VerifyVP(s.ctx, share.ID)
		s.Require().NoError(err)
		s.Equal(models.ReasonHolderMismatch, result.Reason)
	})
}

func (s *ServiceSuite) TestVerifyCredentialIssuerProblems() {
	noIssuer := s.credential("bsc")
	delete(noIssuer, "issuer")
	share := s.storeShare(s.presentation(noIssuer, s.credential("msc"), "eyJhbGciOi.jwt.vc"))

	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(nil, did.ErrNoActiveKey)

	result, err := s.service.VerifyVP(s.ctx, share.ID)
	s.Require().NoError(err)
	s.True(result.VPValid)
	s.Require().Len(result.Credentials, 3)
	s.Equal(models.ReasonMissingIssuer, result.Credentials[0].Reason)
	s.Equal(models.ReasonIssuerInactive, result.Credentials[1].Reason)
	s.Equal(models.ReasonInvalidCredential, result.Credentials[2].Reason)
}

func (s *ServiceSuite) TestVerifyResolverOutageLeavesShare() {
	share := s.storeShare(s.presentation(s.credential("bsc")))
	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), issuerDID).Return(nil, fmt.Errorf("getDID: %w", sentinel.ErrUnavailable))

	_, err := s.service.VerifyVP(s.ctx, share.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = s.store.FindShare(s.ctx, share.ID)
	s.Require().NoError(err, "share is kept for a retry")
}

func (s *ServiceSuite) TestVerifySoftDeleteFailure() {
	st := mocks.NewMockStore(s.ctrl)
	svc, err := New(st, s.resolver)
	s.Require().NoError(err)

	share, err := models.NewVPShare(id.VPShareID{}, holderDID, []byte(`{"holder":"`+holderDID+`"}`), time.Now())
	s.Require().NoError(err)
	st.EXPECT().FindShare(gomock.Any(), share.ID).Return(share, nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	st.EXPECT().SoftDelete(gomock.Any(), share.ID, gomock.Any()).Return(errors.New("connection reset"))

	_, err = svc.VerifyVP(s.ctx, share.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeStore))
}

func (s *ServiceSuite) TestVerifyAfterConcurrentConsumeStillReports() {
	st := mocks.NewMockStore(s.ctrl)
	svc, err := New(st, s.resolver)
	s.Require().NoError(err)

	share, err := models.NewVPShare(id.VPShareID{}, holderDID, []byte(`{"holder":"`+holderDID+`"}`), time.Now())
	s.Require().NoError(err)
	// Another reader consumes the share between the lookup and the soft delete.
	st.EXPECT().FindShare(gomock.Any(), share.ID).Return(share, nil)
	s.resolver.EXPECT().Resolve(gomock.Any(), holderDID).Return(s.holder.key(), nil)
	st.EXPECT().SoftDelete(gomock.Any(), share.ID, gomock.Any()).Return(sentinel.ErrNotFound)

	result, err := svc.VerifyVP(s.ctx, share.ID)
	s.Require().NoError(err)
	s.Equal(share.ID, result.ShareID)
}
