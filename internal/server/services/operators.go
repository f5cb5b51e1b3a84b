// Package services holds the daemon's use cases: operator login, handle
// management, monitoring control and the directory session controls.
package services

import (
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/server/auth"
)

// OperatorService authenticates operators against configured access key
// hashes and mints access tokens.
type OperatorService struct {
	keys      map[int64]string
	jwtSecret []byte
	validity  time.Duration
}

func NewOperatorService(keys map[int64]string, secret string, validity time.Duration) *OperatorService {
	return &OperatorService{keys: keys, jwtSecret: []byte(secret), validity: validity}
}

// Login verifies accessKey for operatorID and returns an access token.
func (s *OperatorService) Login(_ context.Context, operatorID int64, accessKey []byte) (string, error) {
	defer common.WipeByteArray(accessKey)

	hash, ok := s.keys[operatorID]
	if !ok || !auth.VerifyAccessKey(hash, accessKey) {
		return "", common.ErrorUnauthorized
	}
	return auth.GenerateToken(operatorID, s.jwtSecret, s.validity)
}

// Allowed reports whether operatorID is configured.
func (s *OperatorService) Allowed(operatorID int64) bool {
	_, ok := s.keys[operatorID]
	return ok
}

// IDs returns the configured operator ids in ascending order.
func (s *OperatorService) IDs() []int64 {
	ids := make([]int64, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
