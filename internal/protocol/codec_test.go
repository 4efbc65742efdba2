package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_Fields(t *testing.T) {
	when := time.UnixMilli(1717243200123)

	data := NewWriter().
		Int32(-7).
		Uint32(42).
		Float64(1234.5).
		Time(when).
		Time(time.Time{}).
		Text("北京").
		Texts([]string{"a", "", "c"}).
		Blob([]byte{1, 2, 3}).
		Bytes()

	r := NewReader(data)
	assert.Equal(t, int32(-7), r.Int32())
	assert.Equal(t, uint32(42), r.Uint32())
	assert.Equal(t, 1234.5, r.Float64())
	assert.True(t, when.Equal(r.Time()))
	assert.True(t, r.Time().IsZero())
	assert.Equal(t, "北京", r.Text())
	assert.Equal(t, []string{"a", "", "c"}, r.Texts())
	assert.Equal(t, []byte{1, 2, 3}, r.Blob())
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestReader_ShortPayloadIsSticky(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 10, 'a'})

	assert.Equal(t, "", r.Text())
	assert.ErrorIs(t, r.Err(), ErrShortPayload)

	assert.Zero(t, r.Int32())
	assert.ErrorIs(t, r.Err(), ErrShortPayload)
}

func TestReader_TextsRejectsHugeCount(t *testing.T) {
	r := NewReader(NewWriter().Uint32(1 << 30).Bytes())

	assert.Nil(t, r.Texts())
	assert.ErrorIs(t, r.Err(), ErrShortPayload)
}

func TestRequestRoundTrip(t *testing.T) {
	req := Request{Kind: KindBookTicket, Data: BookTicketRequest{Username: "alice", FlightID: "CA100"}.Encode()}

	got, err := DecodeRequest(EncodeRequest(req))

	require.NoError(t, err)
	assert.Equal(t, KindBookTicket, got.Kind)
	assert.Equal(t, req.Data, got.Data)
}

func TestResponseRoundTrip_EmptyData(t *testing.T) {
	raw := EncodeResponse(Response{Status: StatusFailed})
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 0}, raw)

	got, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Empty(t, got.Data)
}

func TestDecodeRequest_Truncated(t *testing.T) {
	_, err := DecodeRequest([]byte{0, 0, 0, 1, 0, 0})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestKindAndStatusNames(t *testing.T) {
	assert.Equal(t, "ai_chat", KindAIChat.String())
	assert.Equal(t, "unknown(99)", RequestKind(99).String())
	assert.Equal(t, "no_seats_left", StatusNoSeatsLeft.String())
	assert.Equal(t, int32(14), int32(KindChangePassword))
	assert.Equal(t, int32(6), int32(StatusUsernameExist))
}
