package handler

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/rpc"
)

const (
	MethodFindSong  = "LyricService.FindSong"
	MethodRecommend = "LyricService.Recommend"
	MethodIndexInfo = "LyricService.IndexInfo"
)

// RegisterRPC exposes the executor on an internal RPC server.
func RegisterRPC(s *rpc.Server, exec *executor.Executor) {
	s.Register(MethodFindSong, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req proto.FindSongRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return exec.Find(ctx, req, "rpc")
	})
	s.Register(MethodRecommend, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req proto.RecommendRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return exec.Recommend(ctx, req, "rpc")
	})
	s.Register(MethodIndexInfo, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return exec.Index().Info(), nil
	})
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid params: %v", err)
	}
	return nil
}
