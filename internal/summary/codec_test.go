package summary

import (
	"reflect"
	"strings"
	"testing"

	"github.com/weftlab/weft/internal/ident"
	"github.com/weftlab/weft/internal/textchange"
)

func sampleData() *Data[textchange.Change] {
	m := ident.NewMinter("codec")
	base := m.Mint()
	return &Data[textchange.Change]{
		Base: base,
		Trunk: []TrunkCommit[textchange.Change]{
			{
				Commit:         Commit[textchange.Change]{Revision: m.Mint(), Session: "alice", Change: textchange.Insert(0, "hello")},
				SequenceNumber: 1,
			},
			{
				Commit:         Commit[textchange.Change]{Revision: m.Mint(), Session: "bob", Change: textchange.Delete(0, "h")},
				SequenceNumber: 2,
			},
		},
		Peers: map[ident.SessionID]PeerBranch[textchange.Change]{
			"carol": {
				Base:    base,
				Commits: []Commit[textchange.Change]{{Revision: m.Mint(), Session: "carol", Change: textchange.Insert(5, "!")}},
			},
			"dave": {Base: base},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec[textchange.Change](textchange.Codec{})
	data := sampleData()

	encoded, err := codec.Encode(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, data) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, data)
	}
}

func TestCodecDeterministicOutput(t *testing.T) {
	codec := NewCodec[textchange.Change](textchange.Codec{})
	a, err := codec.Encode(sampleData())
	if err != nil {
		t.Fatal(err)
	}
	b, err := codec.Encode(sampleData())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("encoding the same snapshot twice should be byte-identical")
	}
}

func TestCodecRejectsCorruption(t *testing.T) {
	codec := NewCodec[textchange.Change](textchange.Codec{})
	encoded, err := codec.Encode(sampleData())
	if err != nil {
		t.Fatal(err)
	}

	flipped := append([]byte(nil), encoded...)
	flipped[len(flipped)/2] ^= 0xff
	if _, err := codec.Decode(flipped); err == nil {
		t.Error("corrupted payload should fail the checksum")
	}

	badMagic := append([]byte(nil), encoded...)
	badMagic[0] = 'X'
	if _, err := codec.Decode(badMagic); err == nil || !strings.Contains(err.Error(), "magic") {
		t.Errorf("bad magic: err = %v, want a magic error", err)
	}

	badVersion := append([]byte(nil), encoded...)
	badVersion[4] = 0xee
	if _, err := codec.Decode(badVersion); err == nil {
		t.Error("unknown version should be rejected")
	}

	if _, err := codec.Decode([]byte("short")); err == nil {
		t.Error("truncated input should be rejected")
	}
}
