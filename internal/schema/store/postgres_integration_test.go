//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vcanchor/internal/schema/models"
	"vcanchor/internal/schema/store"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "vc_schemas"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) insert(issuerDID string) *models.Schema {
	schema, err := models.NewSchema(id.SchemaID(uuid.New()), "Degree", []byte(`{"type":"object"}`), issuerDID, "University", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(context.Background(), schema))
	return schema
}

func (s *PostgresStoreSuite) TestVersionChain() {
	ctx := context.Background()
	v1 := s.insert("did:example:issuer")

	v2, err := v1.NextVersion([]byte(`{"type":"object","required":["degree"]}`), s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(ctx, v2))

	s.ErrorIs(s.store.Insert(ctx, v2), sentinel.ErrConflict)

	latest, err := s.store.FindLatest(ctx, v1.ID)
	s.Require().NoError(err)
	s.Equal(2, latest.Version)
	s.JSONEq(`{"type":"object","required":["degree"]}`, string(latest.Body))

	versions, err := s.store.ListVersions(ctx, v1.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(1, versions[0].Version)

	s.Require().NoError(s.store.Delete(ctx, v2.ID, v2.Version))
	s.ErrorIs(s.store.Delete(ctx, v2.ID, v2.Version), sentinel.ErrNotFound)

	_, err = s.store.Find(ctx, v1.ID, 2)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSetActiveIsCompareAndSwap() {
	ctx := context.Background()
	schema := s.insert("did:example:issuer")

	s.Require().NoError(s.store.SetActive(ctx, schema.ID, 1, false, s.now))
	s.ErrorIs(s.store.SetActive(ctx, schema.ID, 1, false, s.now), sentinel.ErrInvalidState)
	s.Require().NoError(s.store.SetActive(ctx, schema.ID, 1, true, s.now))
	s.ErrorIs(s.store.SetActive(ctx, schema.ID, 7, true, s.now), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByIssuerReturnsLatest() {
	ctx := context.Background()
	first := s.insert("did:example:issuer")
	s.insert("did:example:issuer")
	s.insert("did:example:other")

	v2, err := first.NextVersion([]byte(`{}`), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(ctx, v2))

	schemas, err := s.store.ListByIssuer(ctx, "did:example:issuer")
	s.Require().NoError(err)
	s.Len(schemas, 2)
	for _, schema := range schemas {
		if schema.ID == first.ID {
			s.Equal(2, schema.Version)
		}
	}
}
