package summary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/ident"
)

// Snapshot stream framing.
var magic = []byte{'W', 'E', 'F', 'T'}

const codecVersion byte = 1

// ChangeCodec serializes the concrete change type a document uses.
type ChangeCodec[T any] interface {
	EncodeChange(change T) ([]byte, error)
	DecodeChange(data []byte) (T, error)
}

// Codec encodes snapshots as magic + version + zstd(body) + BLAKE3 trailer.
type Codec[T any] struct {
	changes ChangeCodec[T]
}

// NewCodec creates a snapshot codec over the given change codec.
func NewCodec[T any](changes ChangeCodec[T]) *Codec[T] {
	return &Codec[T]{changes: changes}
}

// Encode serializes a snapshot.
func (c *Codec[T]) Encode(d *Data[T]) ([]byte, error) {
	var body bytes.Buffer

	body.Write(d.Base[:])
	if err := binary.Write(&body, binary.BigEndian, uint32(len(d.Trunk))); err != nil {
		return nil, err
	}
	for _, tc := range d.Trunk {
		if err := c.writeCommit(&body, tc.Commit); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.BigEndian, int64(tc.SequenceNumber)); err != nil {
			return nil, err
		}
	}

	// Peers in session order for deterministic output.
	sessions := make([]string, 0, len(d.Peers))
	for s := range d.Peers {
		sessions = append(sessions, string(s))
	}
	sort.Strings(sessions)

	if err := binary.Write(&body, binary.BigEndian, uint32(len(sessions))); err != nil {
		return nil, err
	}
	for _, s := range sessions {
		pb := d.Peers[ident.SessionID(s)]
		writeBytes(&body, []byte(s))
		body.Write(pb.Base[:])
		if err := binary.Write(&body, binary.BigEndian, uint32(len(pb.Commits))); err != nil {
			return nil, err
		}
		for _, pc := range pb.Commits {
			if err := c.writeCommit(&body, pc); err != nil {
				return nil, err
			}
		}
	}

	var out bytes.Buffer
	out.Write(magic)
	out.WriteByte(codecVersion)
	enc, err := zstd.NewWriter(&out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(body.Bytes()); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}

	sum := blake3.Sum256(out.Bytes())
	out.Write(sum[:])
	return out.Bytes(), nil
}

// Decode parses a snapshot produced by Encode.
func (c *Codec[T]) Decode(data []byte) (*Data[T], error) {
	if len(data) < len(magic)+1+32 {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic) {
		return nil, fmt.Errorf("bad snapshot magic")
	}
	if v := data[len(magic)]; v != codecVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}

	payload := data[:len(data)-32]
	var trailer [32]byte
	copy(trailer[:], data[len(data)-32:])
	if blake3.Sum256(payload) != trailer {
		return nil, fmt.Errorf("snapshot checksum mismatch")
	}

	dec, err := zstd.NewReader(bytes.NewReader(payload[len(magic)+1:]))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	body, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	r := bytes.NewReader(body)
	d := &Data[T]{Peers: make(map[ident.SessionID]PeerBranch[T])}
	if _, err := io.ReadFull(r, d.Base[:]); err != nil {
		return nil, fmt.Errorf("read base revision: %w", err)
	}

	var trunkCount uint32
	if err := binary.Read(r, binary.BigEndian, &trunkCount); err != nil {
		return nil, fmt.Errorf("read trunk count: %w", err)
	}
	for i := uint32(0); i < trunkCount; i++ {
		cm, err := c.readCommit(r)
		if err != nil {
			return nil, fmt.Errorf("read trunk commit %d: %w", i, err)
		}
		var seq int64
		if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
			return nil, fmt.Errorf("read sequence number: %w", err)
		}
		d.Trunk = append(d.Trunk, TrunkCommit[T]{Commit: cm, SequenceNumber: graph.SeqNumber(seq)})
	}

	var peerCount uint32
	if err := binary.Read(r, binary.BigEndian, &peerCount); err != nil {
		return nil, fmt.Errorf("read peer count: %w", err)
	}
	for i := uint32(0); i < peerCount; i++ {
		sess, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("read peer session: %w", err)
		}
		var pb PeerBranch[T]
		if _, err := io.ReadFull(r, pb.Base[:]); err != nil {
			return nil, fmt.Errorf("read peer base: %w", err)
		}
		var commitCount uint32
		if err := binary.Read(r, binary.BigEndian, &commitCount); err != nil {
			return nil, fmt.Errorf("read peer commit count: %w", err)
		}
		for j := uint32(0); j < commitCount; j++ {
			cm, err := c.readCommit(r)
			if err != nil {
				return nil, fmt.Errorf("read peer commit %d: %w", j, err)
			}
			pb.Commits = append(pb.Commits, cm)
		}
		d.Peers[ident.SessionID(sess)] = pb
	}

	return d, nil
}

func (c *Codec[T]) writeCommit(w *bytes.Buffer, cm Commit[T]) error {
	w.Write(cm.Revision[:])
	writeBytes(w, []byte(cm.Session))
	encoded, err := c.changes.EncodeChange(cm.Change)
	if err != nil {
		return fmt.Errorf("encode change %s: %w", cm.Revision.Short(), err)
	}
	writeBytes(w, encoded)
	return nil
}

func (c *Codec[T]) readCommit(r *bytes.Reader) (Commit[T], error) {
	var cm Commit[T]
	if _, err := io.ReadFull(r, cm.Revision[:]); err != nil {
		return cm, err
	}
	sess, err := readBytes(r)
	if err != nil {
		return cm, err
	}
	cm.Session = ident.SessionID(sess)
	encoded, err := readBytes(r)
	if err != nil {
		return cm, err
	}
	cm.Change, err = c.changes.DecodeChange(encoded)
	if err != nil {
		return cm, fmt.Errorf("decode change %s: %w", cm.Revision.Short(), err)
	}
	return cm, nil
}

func writeBytes(w *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	w.Write(n[:])
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(n[:])
	if int(size) > r.Len() {
		return nil, fmt.Errorf("truncated field: %d bytes declared, %d available", size, r.Len())
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
