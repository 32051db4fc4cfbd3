// Package identity resolves learner identities used by the transformers and
// the enterprise context processor.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
)

// Anonymous is the actor id used when a learner cannot be identified.
const Anonymous = "anonymous"

// ErrUnknownLearner is returned by lookups for learners that are not known.
var ErrUnknownLearner = errors.New("unknown learner")

// Pseudonymizer maps a username to a stable anonymous id, scoped to a course
// when courseID is not empty.
type Pseudonymizer interface {
	AnonymousID(username, courseID string) string
}

// HMAC derives anonymous ids as a keyed hash of the username and course.
type HMAC struct {
	secret []byte
}

// NewHMAC returns a Pseudonymizer keyed with secret.
func NewHMAC(secret string) *HMAC {
	return &HMAC{secret: []byte(secret)}
}

// AnonymousID returns Anonymous for an empty username.
func (h *HMAC) AnonymousID(username, courseID string) string {
	if username == "" {
		return Anonymous
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(username))
	if courseID != "" {
		mac.Write([]byte{0})
		mac.Write([]byte(courseID))
	}
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// EnterpriseLookup returns the enterprise customer a learner belongs to.
type EnterpriseLookup interface {
	EnterpriseUUID(ctx context.Context, username string) (string, error)
}

// StaticEnterprises is an in-memory EnterpriseLookup keyed by username.
type StaticEnterprises struct {
	mu      sync.RWMutex
	members map[string]string
}

// NewStaticEnterprises copies members (username → enterprise uuid).
func NewStaticEnterprises(members map[string]string) *StaticEnterprises {
	s := &StaticEnterprises{members: make(map[string]string, len(members))}
	for k, v := range members {
		s.members[k] = v
	}
	return s
}

// Set links username to an enterprise.
func (s *StaticEnterprises) Set(username, enterpriseUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[username] = enterpriseUUID
}

func (s *StaticEnterprises) EnterpriseUUID(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.members[username]
	if !ok {
		return "", ErrUnknownLearner
	}
	return id, nil
}
