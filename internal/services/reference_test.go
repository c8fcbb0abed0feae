package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/status"
)

func TestReference_RoundTrip(t *testing.T) {
	issued := time.UnixMilli(1700000000123)

	tests := []struct {
		name string
		ref  Reference
		want string
	}{
		{"paid", Reference{EventID: "evt1", UserID: "usr1", IssuedAt: issued}, "evt1-1700000000123-usr1"},
		{"paid with type", Reference{EventID: "evt1", UserID: "usr1", TicketTypeID: "vip1", IssuedAt: issued}, "evt1-1700000000123-usr1-vip1"},
		{"test", Reference{EventID: "evt1", UserID: "usr1", IssuedAt: issued, Test: true}, "evt1-1700000000123-usr1-test"},
		{"test with type", Reference{EventID: "evt1", UserID: "usr1", TicketTypeID: "vip1", IssuedAt: issued, Test: true}, "evt1-1700000000123-usr1-vip1-test"},
		{"free", Reference{EventID: "evt1", UserID: "usr1", IssuedAt: issued, Free: true}, "free-evt1-1700000000123-usr1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.String())

			got, err := ParseReference(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.ref.EventID, got.EventID)
			assert.Equal(t, tt.ref.UserID, got.UserID)
			assert.Equal(t, tt.ref.TicketTypeID, got.TicketTypeID)
			assert.Equal(t, tt.ref.Free, got.Free)
			assert.Equal(t, tt.ref.Test, got.Test)
			assert.True(t, issued.Equal(got.IssuedAt))
		})
	}
}

func TestParseReference_Malformed(t *testing.T) {
	for _, ref := range []string{
		"",
		"evt1",
		"evt1-usr1",
		"evt1-notanumber-usr1",
		"evt1--usr1",
		"free-test",
		"a-1-b-c-d",
	} {
		_, err := ParseReference(ref)
		assert.ErrorIs(t, err, status.ErrReferenceParse, ref)
	}
}

func TestReferenceMarkers(t *testing.T) {
	assert.True(t, IsTestReference("evt1-1700000000123-usr1-test"))
	assert.False(t, IsTestReference("evt1-1700000000123-usr1"))
	assert.False(t, IsTestReference("evt1-1700000000123-tester"))

	assert.True(t, IsFreeReference("free-evt1-1700000000123-usr1"))
	assert.False(t, IsFreeReference("freebie-1700000000123-usr1"))
}
