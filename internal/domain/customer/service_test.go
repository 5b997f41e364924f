package customer

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	created []*Customer
	err     error
}

func (m *mockRepo) Create(_ context.Context, c *Customer) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, c)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Customer, error) {
	for _, c := range m.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(context.Context) ([]Customer, error) {
	out := make([]Customer, 0, len(m.created))
	for _, c := range m.created {
		out = append(out, *c)
	}
	return out, nil
}

func TestCreate(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	c, err := svc.Create(context.Background(), Customer{
		Name:  "  Walter Green ",
		Phone: "+44 1632 960000",
		Email: " walter@greenfarm.example ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Walter Green", c.Name)
	assert.Equal(t, "walter@greenfarm.example", c.Email)
	assert.Equal(t, now, c.CreatedAt)

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCreate_NameRequired(t *testing.T) {
	svc := NewService(&mockRepo{})

	_, err := svc.Create(context.Background(), Customer{Name: "   "})
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestCreate_RepoError(t *testing.T) {
	want := errors.New("db down")
	svc := NewService(&mockRepo{err: want})

	_, err := svc.Create(context.Background(), Customer{Name: "Ann"})
	require.ErrorIs(t, err, want)
	assert.Contains(t, err.Error(), "create customer")
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(&mockRepo{})

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
