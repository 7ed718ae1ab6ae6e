package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/gofrs/flock"

	"github.com/uplift-ai/uplift/internal/log"
)

// maxSessionMessages bounds the stored history per user. Older messages are
// dropped pairwise so the file never grows without limit.
const maxSessionMessages = 40

// SessionStatus reports the state of one user's conversation history.
type SessionStatus struct {
	Exists    bool      `json:"exists"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// storedMessage is the on-disk message form. Only text survives persistence;
// tool traffic is transient and never stored.
type storedMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type sessionFile struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []storedMessage `json:"messages"`
}

// SessionStore persists per-user conversation history as JSON files under a
// state directory. Writes are atomic (temp file + rename) and guarded by
// file locks, so concurrent requests for the same user never interleave.
type SessionStore struct {
	dir    string
	logger log.Logger
}

// NewSessionStore creates the state directory if needed.
func NewSessionStore(dir string, logger log.Logger) (*SessionStore, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &SessionStore{dir: dir, logger: logger}, nil
}

// History returns the user's stored conversation as model messages, oldest
// first. A missing file means an empty history, not an error.
func (s *SessionStore) History(userID string) ([]*ai.Message, error) {
	path := s.path(userID)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking session file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}

	msgs := make([]*ai.Message, 0, len(sf.Messages))
	for _, m := range sf.Messages {
		switch m.Role {
		case "user":
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		case "model":
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		}
	}
	return msgs, nil
}

// Append stores one completed exchange at the end of the user's history.
func (s *SessionStore) Append(userID, userText, modelText string) error {
	path := s.path(userID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking session file: %w", err)
	}
	defer lock.Unlock()

	var sf sessionFile
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &sf); err != nil {
			s.logger.Warn("session file corrupt, starting fresh", "user_id", userID, "error", err)
			sf = sessionFile{}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading session file: %w", err)
	}

	sf.Messages = append(sf.Messages,
		storedMessage{Role: "user", Text: userText},
		storedMessage{Role: "model", Text: modelText},
	)
	if over := len(sf.Messages) - maxSessionMessages; over > 0 {
		sf.Messages = sf.Messages[over:]
	}
	sf.UpdatedAt = time.Now().UTC()

	return s.writeAtomic(path, sf)
}

// Clear removes the user's history. Clearing a user with no history is a no-op.
func (s *SessionStore) Clear(userID string) error {
	path := s.path(userID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking session file: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// Status reports whether the user has stored history and how much.
func (s *SessionStore) Status(userID string) (SessionStatus, error) {
	path := s.path(userID)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return SessionStatus{}, fmt.Errorf("locking session file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionStatus{}, nil
		}
		return SessionStatus{}, fmt.Errorf("reading session file: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return SessionStatus{}, fmt.Errorf("decoding session file: %w", err)
	}
	return SessionStatus{Exists: true, Messages: len(sf.Messages), UpdatedAt: sf.UpdatedAt}, nil
}

func (s *SessionStore) writeAtomic(path string, sf sessionFile) error {
	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// path maps a user ID to its session file, replacing anything that is not a
// filename-safe character so a crafted ID cannot escape the state directory.
func (s *SessionStore) path(userID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, userID)
	return filepath.Join(s.dir, safe+".json")
}
