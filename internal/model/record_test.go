package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{
		ID:        7,
		Category:  CategoryNormal,
		Timestamp: time.Unix(1700000000, 0),
		AppName:   "mail",
		Title:     "New message",
		Flags:     DefaultDisplayFlags,
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Record)
		wantErr error
	}{
		{
			name:    "valid record",
			modify:  func(r *Record) {},
			wantErr: nil,
		},
		{
			name:    "negative id",
			modify:  func(r *Record) { r.ID = -1 },
			wantErr: ErrInvalidID,
		},
		{
			name:    "unknown category",
			modify:  func(r *Record) { r.Category = Category(9) },
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "zero timestamp",
			modify:  func(r *Record) { r.Timestamp = time.Time{} },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "negative timeout",
			modify:  func(r *Record) { r.Timeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRecord()
			tt.modify(r)
			assert.ErrorIs(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	r := testRecord()
	r.Actions = []Action{{Key: "open", Label: "Open"}}
	r.LED = &LEDDirective{Color: 0x00ff00, OnMs: 500, OffMs: 1500}

	clone := r.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, r, clone)

	clone.Actions[0].Label = "changed"
	clone.LED.Color = 0xff0000
	assert.Equal(t, "Open", r.Actions[0].Label)
	assert.Equal(t, uint32(0x00ff00), r.LED.Color)

	var nilRecord *Record
	assert.Nil(t, nilRecord.Clone())
}

func TestRecord_ExpiresAt(t *testing.T) {
	r := testRecord()
	assert.Equal(t, r.Timestamp.Add(3*time.Second), r.ExpiresAt(3*time.Second))

	r.Timeout = 10 * time.Second
	assert.Equal(t, r.Timestamp.Add(10*time.Second), r.ExpiresAt(3*time.Second))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Ongoing")
	require.NoError(t, err)
	assert.Equal(t, CategoryOngoing, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryNormal, c)

	_, err = ParseCategory("urgent")
	assert.Error(t, err)

	assert.Equal(t, "all", CategoryAll.String())
}

func TestDisplayFlags(t *testing.T) {
	r := testRecord()
	assert.True(t, r.WantsHeadsUp())
	assert.False(t, r.WantsLED())

	r.LED = &LEDDirective{}
	assert.False(t, r.WantsLED())
	r.Flags |= DisplayLED
	assert.True(t, r.WantsLED())
	assert.False(t, r.Flags.Has(DisplayTrayOnly))
}
