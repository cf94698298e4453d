package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/potchannel/potchannel/internal/replay"
	"github.com/potchannel/potchannel/internal/transcript"
)

// VerifyCmd replays a transcript file offline and prints the verdict a
// ledger would reach, without touching any channel state.
type VerifyCmd struct {
	File          string `kong:"arg,help='Transcript JSON file'"`
	Prefix        bool   `kong:"help='Treat the transcript as dispute evidence (may stop mid-hand)'"`
	StackA        uint64 `kong:"default='1000',help='Player A starting stack'"`
	StackB        uint64 `kong:"default='1000',help='Player B starting stack'"`
	MinSmallBlind uint64 `kong:"default='1',help='Channel minimum small blind'"`
}

// transcriptFile is the on-disk transcript format. Senders are "a" or
// "b"; sequence numbers and chain hashes are derived, so a hand can be
// written by hand for analysis.
type transcriptFile struct {
	ChannelID uint64       `json:"channelId"`
	HandID    uint64       `json:"handId"`
	PlayerA   string       `json:"playerA,omitempty"` // hex public key, optional
	PlayerB   string       `json:"playerB,omitempty"`
	Actions   []fileAction `json:"actions"`
}

type fileAction struct {
	Sender string `json:"sender"` // "a" or "b"
	Kind   string `json:"kind"`
	Amount uint64 `json:"amount,omitempty"`
}

func (c *VerifyCmd) Run() error {
	raw, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	var tf transcriptFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	playerA, err := parsePlayer(tf.PlayerA, transcript.PlayerID{0x0a})
	if err != nil {
		return fmt.Errorf("playerA: %w", err)
	}
	playerB, err := parsePlayer(tf.PlayerB, transcript.PlayerID{0x0b})
	if err != nil {
		return fmt.Errorf("playerB: %w", err)
	}

	actions, err := buildChain(&tf, playerA, playerB)
	if err != nil {
		return err
	}
	if err := transcript.VerifyChain(actions, tf.ChannelID, tf.HandID); err != nil {
		return fmt.Errorf("chain: %w", err)
	}

	var res replay.Result
	if c.Prefix {
		res, err = replay.ValidatePrefix(actions, c.StackA, c.StackB, c.MinSmallBlind, playerA, playerB)
	} else {
		res, err = replay.ValidateComplete(actions, c.StackA, c.StackB, c.MinSmallBlind, playerA, playerB)
	}
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Printf("verdict: %s\n", res.End)
	switch res.End {
	case replay.FoldEnd:
		fmt.Printf("folder:  seat %d\n", res.Folder)
		fmt.Printf("won:     %d\n", res.Won)
	case replay.ShowdownEnd:
		fmt.Printf("contested: %d\n", res.Won)
	case replay.Pending:
		fmt.Printf("min committed: A=%d B=%d\n", res.MinContributed[0], res.MinContributed[1])
	}
	return nil
}

// parsePlayer decodes a hex public key, or returns the fallback when
// the file names no key (replay does not need real identities, only
// two distinct ones).
func parsePlayer(s string, fallback transcript.PlayerID) (transcript.PlayerID, error) {
	if s == "" {
		return fallback, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return transcript.PlayerID{}, err
	}
	if len(raw) != len(transcript.PlayerID{}) {
		return transcript.PlayerID{}, fmt.Errorf("key must be %d bytes, got %d", len(transcript.PlayerID{}), len(raw))
	}
	var id transcript.PlayerID
	copy(id[:], raw)
	return id, nil
}

func buildChain(tf *transcriptFile, playerA, playerB transcript.PlayerID) ([]transcript.Action, error) {
	actions := make([]transcript.Action, len(tf.Actions))
	prev := transcript.GenesisHash(tf.ChannelID, tf.HandID)
	for i, fa := range tf.Actions {
		var sender transcript.PlayerID
		switch fa.Sender {
		case "a", "A":
			sender = playerA
		case "b", "B":
			sender = playerB
		default:
			return nil, fmt.Errorf("action %d: sender must be \"a\" or \"b\", got %q", i, fa.Sender)
		}
		kind, err := parseKind(fa.Kind)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions[i] = transcript.Action{
			ChannelID: tf.ChannelID,
			HandID:    tf.HandID,
			Seq:       uint32(i),
			Kind:      kind,
			Amount:    fa.Amount,
			PrevHash:  prev,
			Sender:    sender,
		}
		prev = actions[i].Digest()
	}
	return actions, nil
}

func parseKind(s string) (transcript.Kind, error) {
	switch s {
	case "small_blind", "sb":
		return transcript.SmallBlind, nil
	case "big_blind", "bb":
		return transcript.BigBlind, nil
	case "fold":
		return transcript.Fold, nil
	case "check_call", "check", "call":
		return transcript.CheckCall, nil
	case "bet_raise", "bet", "raise":
		return transcript.BetRaise, nil
	}
	return 0, fmt.Errorf("unknown action kind %q", s)
}
