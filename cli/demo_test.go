package cli

import "testing"

func TestDemoSessionConverges(t *testing.T) {
	peers, lastSeq, err := runDemoSession(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if lastSeq != 12 {
		t.Errorf("last sequence number = %d, want 12", lastSeq)
	}

	reference, err := trunkDoc(peers[0].mgr)
	if err != nil {
		t.Fatal(err)
	}
	if len(reference) != 24 {
		t.Errorf("document length = %d, want 24", len(reference))
	}
	for _, p := range peers[1:] {
		doc, err := trunkDoc(p.mgr)
		if err != nil {
			t.Fatal(err)
		}
		if doc != reference {
			t.Errorf("%s diverged: %q != %q", p.session, doc, reference)
		}
	}

	for _, p := range peers {
		if err := p.mgr.AdvanceMinimumSequenceNumber(lastSeq); err != nil {
			t.Fatal(err)
		}
		if n := len(p.mgr.GetTrunkCommits()); n != 0 {
			t.Errorf("%s trunk length after full advance = %d, want 0", p.session, n)
		}
	}
}
