package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationKey_Symmetric(t *testing.T) {
	a := NewConversationKey("22222", "11111")
	b := NewConversationKey("11111", "22222")
	require.Equal(t, a, b)
	assert.Equal(t, "11111", a.A)
	assert.Equal(t, "22222", a.Other("11111"))
	assert.Equal(t, "11111", a.Other("22222"))
	assert.Equal(t, "11111:22222", a.String())
}

func TestSortMessages_TimestampThenID(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: 3, Timestamp: ts},
		{ID: 1, Timestamp: ts.Add(time.Second)},
		{ID: 2, Timestamp: ts},
	}
	SortMessages(msgs)
	assert.Equal(t, []int64{2, 3, 1}, []int64{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestHasContent(t *testing.T) {
	empty := ""
	hi := "hi"
	assert.False(t, (&Message{}).HasContent())
	assert.False(t, (&Message{Text: &empty}).HasContent())
	assert.True(t, (&Message{Text: &hi}).HasContent())
	assert.True(t, (&Message{Attachment: &Attachment{FileName: "a.png"}}).HasContent())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrEmptyMessage, KindValidation},
		{fmt.Errorf("wrap: %w", ErrAttachmentTooLarge), KindValidation},
		{ErrInvalidCredentials, KindAuth},
		{ErrUnauthenticated, KindAuth},
		{ErrCodeAlreadyRegistered, KindConflict},
		{ErrTransient, KindTransient},
		{ErrNotFound, KindNotFound},
		{errors.New("boom"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.err), c.err.Error())
	}
	assert.Equal(t, "CodeAlreadyRegistered", ErrorCode(fmt.Errorf("x: %w", ErrCodeAlreadyRegistered)))
	assert.Equal(t, "", ErrorCode(errors.New("boom")))
}
