package httptransport_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vcanchor/internal/auth"
	credhandler "vcanchor/internal/credential/handler"
	credmodels "vcanchor/internal/credential/models"
	credservice "vcanchor/internal/credential/service"
	requeststore "vcanchor/internal/credential/store/request"
	responsestore "vcanchor/internal/credential/store/response"
	"vcanchor/internal/did"
	didmocks "vcanchor/internal/did/mocks"
	"vcanchor/internal/ledger"
	ledgermocks "vcanchor/internal/ledger/mocks"
	vphandler "vcanchor/internal/presentation/handler"
	vpmodels "vcanchor/internal/presentation/models"
	vpservice "vcanchor/internal/presentation/service"
	vpstore "vcanchor/internal/presentation/store"
	schemahandler "vcanchor/internal/schema/handler"
	schemamodels "vcanchor/internal/schema/models"
	schemaservice "vcanchor/internal/schema/service"
	schemastore "vcanchor/internal/schema/store"
	"vcanchor/internal/signature"
	httptransport "vcanchor/internal/transport/http"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/testutil"
)

const (
	issuerDID   = "did:example:university"
	holderDID   = "did:example:student"
	verifierDID = "did:example:employer"
)

// stack is the full HTTP surface over memory stores, with the ledger and DID
// registry mocked at the gateway boundary.
type stack struct {
	router http.Handler
	ledger *ledgermocks.MockGateway

	issuerKey   *btcec.PrivateKey
	holderKey   *ecdsa.PrivateKey
	verifierKey *ecdsa.PrivateKey
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := &stack{ledger: ledgermocks.NewMockGateway(ctrl)}
	var err error
	st.issuerKey, err = btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	st.holderKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	st.verifierKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	holderPub, err := signature.P256PublicKeyBytes(&st.holderKey.PublicKey)
	require.NoError(t, err)
	verifierPub, err := signature.P256PublicKeyBytes(&st.verifierKey.PublicKey)
	require.NoError(t, err)
	keys := map[string][]byte{
		issuerDID:   st.issuerKey.PubKey().SerializeCompressed(),
		holderDID:   holderPub,
		verifierDID: verifierPub,
	}

	resolver := didmocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, id string) (*did.Key, error) {
			pub, ok := keys[id]
			if !ok {
				return nil, sentinel.ErrNotFound
			}
			return &did.Key{DID: id, KeyID: id + "#keys-1", PublicKey: pub, Status: did.StatusActive}, nil
		}).AnyTimes()

	authn, err := auth.New(resolver, auth.WithLogger(logger))
	require.NoError(t, err)
	credentials, err := credservice.New(requeststore.NewInMemoryStore(), responsestore.NewInMemoryStore(), st.ledger,
		credservice.WithLogger(logger))
	require.NoError(t, err)
	schemas, err := schemaservice.New(schemastore.NewInMemoryStore(), st.ledger, schemaservice.WithLogger(logger))
	require.NoError(t, err)
	presentations, err := vpservice.New(vpstore.NewInMemoryStore(), resolver, vpservice.WithLogger(logger))
	require.NoError(t, err)

	st.router = httptransport.NewRouter(httptransport.Deps{
		Logger:       logger,
		Authenticate: auth.RequireDID(authn, logger),
		Modules: []httptransport.Registrar{
			credhandler.New(credentials, logger),
			schemahandler.New(schemas, logger),
			vphandler.New(presentations, logger),
		},
	})
	return st
}

func (st *stack) token(t *testing.T, id string) string {
	t.Helper()
	var (
		raw string
		err error
	)
	switch id {
	case issuerDID:
		raw, err = signature.SignToken(signature.SigningMethodES256K, st.issuerKey, id, "", time.Now(), time.Minute)
	case holderDID:
		raw, err = signature.SignToken(jwt.SigningMethodES256, st.holderKey, id, "", time.Now(), time.Minute)
	default:
		raw, err = signature.SignToken(jwt.SigningMethodES256, st.verifierKey, id, "", time.Now(), time.Minute)
	}
	require.NoError(t, err)
	return raw
}

func (st *stack) do(t *testing.T, as string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+st.token(t, as))
	return testutil.DoRequest(st.router, req)
}

func TestCredentialLifecycleOverHTTP(t *testing.T) {
	st := newStack(t)
	var (
		schemaID  string
		requestID string
		signedVC  map[string]any
	)

	testutil.Given(t, "an issuer that registered a schema on the ledger", func(t *testing.T) {
		st.ledger.EXPECT().SubmitAndWait(gomock.Any(), ledger.MethodCreateSchema, gomock.Any()).
			Return(&ledger.Receipt{Status: ledger.StatusSuccess, TxHash: "0x01"}, nil)

		rr := st.do(t, issuerDID, testutil.NewJSONRequest(t, http.MethodPost, "/schemas", map[string]any{
			"name":        "Degree",
			"schema":      map[string]any{"type": "object"},
			"issuer_name": "University",
		}))
		require.Equal(t, http.StatusCreated, rr.Code)
		created := testutil.UnmarshalResponse[schemamodels.Result](t, rr)
		require.NotNil(t, created.Schema)
		assert.Equal(t, 1, created.Schema.Version)
		schemaID = created.Schema.ID.String()
	})

	testutil.When(t, "the holder asks for a credential and the issuer approves it", func(t *testing.T) {
		rr := st.do(t, holderDID, testutil.NewJSONRequest(t, http.MethodPost, "/vc-issuance", map[string]string{
			"issuer_did":     issuerDID,
			"encrypted_body": "ciphertext",
		}))
		require.Equal(t, http.StatusCreated, rr.Code)
		requestID = (*testutil.UnmarshalResponse[map[string]string](t, rr))["request_id"]

		vc, err := signature.SignLegacySecp256k1Proof(map[string]any{
			"@context":          []any{"https://www.w3.org/2018/credentials/v1"},
			"type":              []any{"VerifiableCredential", "Degree"},
			"issuer":            issuerDID,
			"credentialSubject": map[string]any{"id": holderDID, "degree": "BSc"},
		}, map[string]any{
			"type":               signature.ProofTypeSecp256k1Signature,
			"verificationMethod": issuerDID + "#keys-1",
			"proofPurpose":       "assertionMethod",
		}, st.issuerKey)
		require.NoError(t, err)
		signedVC = vc

		st.ledger.EXPECT().SubmitAndWait(gomock.Any(), ledger.MethodIssueVC, gomock.Any()).
			Return(&ledger.Receipt{Status: ledger.StatusSuccess, TxHash: "0x02"}, nil)
		exp := time.Now().Add(365 * 24 * time.Hour)
		rr = st.do(t, issuerDID, testutil.NewJSONRequest(t, http.MethodPost, "/manual-worker/issue-vc", map[string]any{
			"request_id": requestID,
			"holder_did": holderDID,
			"action":     "APPROVED",
			"approval": credmodels.Approval{
				VCID: "vc-1", VCType: "Degree", SchemaID: schemaID, SchemaVersion: 1,
				VCHash: "0xhash", ExpiredAt: &exp, EncryptedVC: "encrypted-vc",
			},
		}))
		require.Equal(t, http.StatusOK, rr.Code)
		testutil.AssertJSONContains(t, rr, "degraded", false)
	})

	testutil.Then(t, "the holder claims and confirms the response exactly once", func(t *testing.T) {
		rr := st.do(t, holderDID, testutil.NewJSONRequest(t, http.MethodPost, "/credential-responses/claim", map[string]int{"limit": 10}))
		require.Equal(t, http.StatusOK, rr.Code)
		claimed := testutil.UnmarshalResponse[credmodels.ClaimResult](t, rr)
		require.Equal(t, 1, claimed.ClaimedCount)
		assert.Equal(t, "encrypted-vc", claimed.Responses[0].EncryptedBody)

		rr = st.do(t, holderDID, testutil.NewJSONRequest(t, http.MethodPost, "/credential-responses/claim", map[string]int{"limit": 10}))
		require.Equal(t, http.StatusOK, rr.Code)
		testutil.AssertJSONContains(t, rr, "claimed_count", float64(0))

		rr = st.do(t, holderDID, testutil.NewJSONRequest(t, http.MethodPost, "/credential-responses/confirm", map[string]any{
			"ids": []string{claimed.Responses[0].ID.String()},
		}))
		require.Equal(t, http.StatusOK, rr.Code)
		testutil.AssertJSONContains(t, rr, "confirmed_count", float64(1))
	})

	testutil.And(t, "a verifier receives and verifies the holder's presentation once", func(t *testing.T) {
		rr := st.do(t, verifierDID, testutil.NewJSONRequest(t, http.MethodPost, "/vp-requests", map[string]any{
			"holder_did": holderDID,
			"schema_ids": []string{schemaID},
		}))
		require.Equal(t, http.StatusCreated, rr.Code)

		vp, err := signature.SignP256Proof(map[string]any{
			"@context":             []any{"https://www.w3.org/2018/credentials/v1"},
			"type":                 []any{"VerifiablePresentation"},
			"holder":               holderDID,
			"verifiableCredential": []any{signedVC},
		}, map[string]any{
			"type":               signature.ProofTypeSecp256r1Signature,
			"verificationMethod": holderDID + "#keys-1",
			"proofPurpose":       "authentication",
		}, st.holderKey)
		require.NoError(t, err)

		rr = st.do(t, holderDID, testutil.NewJSONRequest(t, http.MethodPost, "/vp-shares", map[string]any{"vp": vp}))
		require.Equal(t, http.StatusCreated, rr.Code)
		shareID := (*testutil.UnmarshalResponse[map[string]string](t, rr))["id"]

		rr = st.do(t, verifierDID, testutil.NewRequest(t, http.MethodPost, "/vp-shares/"+shareID+"/verify"))
		require.Equal(t, http.StatusOK, rr.Code)
		result := testutil.UnmarshalResponse[vpmodels.VerificationResult](t, rr)
		assert.True(t, result.VPValid, result.Reason)
		require.Len(t, result.Credentials, 1)
		assert.True(t, result.Credentials[0].Valid, result.Credentials[0].Reason)
		assert.True(t, result.AllValid())

		rr = st.do(t, verifierDID, testutil.NewRequest(t, http.MethodGet, "/vp-shares/"+shareID))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	st := newStack(t)

	rr := testutil.DoRequest(st.router, testutil.NewRequest(t, http.MethodGet, "/schemas"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := testutil.NewRequest(t, http.MethodGet, "/schemas")
	req.Header.Set("Authorization", "Bearer "+st.token(t, verifierDID)+"x")
	rr = testutil.DoRequest(st.router, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.NotEmpty(t, body["reason"])
}
