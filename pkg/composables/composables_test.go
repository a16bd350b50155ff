package composables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseActor(t *testing.T) {
	_, err := UseActor(context.Background())
	require.ErrorIs(t, err, ErrNoActor)

	id := uuid.New()
	got, err := UseActor(WithActor(context.Background(), id))
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestUseLogger(t *testing.T) {
	require.Nil(t, UseLogger(context.Background()))

	entry := logrus.NewEntry(logrus.New())
	require.Same(t, entry, UseLogger(WithLogger(context.Background(), entry)))
}

func TestUseTx_WithoutPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)

	err = InSerializableTx(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrNoPool)
}
