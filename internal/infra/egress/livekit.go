// Package egress adapts the LiveKit egress and room services to the recording gateway port.
package egress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/ManuGH/meetd/internal/domain/recordings/model"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/resilience"
)

// S3Output is where the media server uploads composed files.
type S3Output struct {
	Endpoint       string
	AccessKey      string
	Secret         string
	Bucket         string
	Region         string
	ForcePathStyle bool
}

// Config configures the LiveKit gateway.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	// Prefix is prepended to every file path, matching the storage base prefix.
	Prefix string
	Output S3Output
}

// egressAPI is the subset of *lksdk.EgressClient used here.
type egressAPI interface {
	StartRoomCompositeEgress(ctx context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error)
	StopEgress(ctx context.Context, req *livekit.StopEgressRequest) (*livekit.EgressInfo, error)
	ListEgress(ctx context.Context, req *livekit.ListEgressRequest) (*livekit.ListEgressResponse, error)
}

// roomAPI is the subset of *lksdk.RoomServiceClient used here.
type roomAPI interface {
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
}

// LiveKitGateway implements ports.Gateway. Every call goes through a circuit breaker.
type LiveKitGateway struct {
	egress  egressAPI
	rooms   roomAPI
	breaker *resilience.CircuitBreaker
	cfg     Config
}

// NewLiveKitGateway dials nothing; the SDK clients connect per request.
func NewLiveKitGateway(cfg Config, breaker *resilience.CircuitBreaker) *LiveKitGateway {
	return newGateway(
		lksdk.NewEgressClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		cfg, breaker,
	)
}

func newGateway(e egressAPI, r roomAPI, cfg Config, breaker *resilience.CircuitBreaker) *LiveKitGateway {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("livekit", 5, 30*time.Second)
	}
	return &LiveKitGateway{egress: e, rooms: r, breaker: breaker, cfg: cfg}
}

func (g *LiveKitGateway) StartRoomComposite(ctx context.Context, roomID, filePath string, opts ports.StartOptions) (*ports.EgressInfo, error) {
	req := &livekit.RoomCompositeEgressRequest{
		RoomName: roomID,
		Layout:   opts.Layout,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_MP4,
			Filepath: g.cfg.Prefix + filePath,
			Output: &livekit.EncodedFileOutput_S3{S3: &livekit.S3Upload{
				AccessKey:      g.cfg.Output.AccessKey,
				Secret:         g.cfg.Output.Secret,
				Region:         g.cfg.Output.Region,
				Endpoint:       g.cfg.Output.Endpoint,
				Bucket:         g.cfg.Output.Bucket,
				ForcePathStyle: g.cfg.Output.ForcePathStyle,
			}},
		}},
	}
	if preset, ok := encodingPreset(opts.Encoding); ok {
		req.Options = &livekit.RoomCompositeEgressRequest_Preset{Preset: preset}
	}

	info, err := resilience.Do(g.breaker, func() (*livekit.EgressInfo, error) {
		return g.egress.StartRoomCompositeEgress(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("start room composite egress for %q: %w", roomID, err)
	}
	out := g.toEgressInfo(info)
	return &out, nil
}

func (g *LiveKitGateway) StopEgress(ctx context.Context, egressID string) (*ports.EgressInfo, error) {
	info, err := resilience.Do(g.breaker, func() (*livekit.EgressInfo, error) {
		return g.egress.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID})
	})
	if err != nil {
		return nil, fmt.Errorf("stop egress %q: %w", egressID, err)
	}
	out := g.toEgressInfo(info)
	return &out, nil
}

func (g *LiveKitGateway) ListEgress(ctx context.Context, filter ports.EgressFilter) ([]ports.EgressInfo, error) {
	resp, err := resilience.Do(g.breaker, func() (*livekit.ListEgressResponse, error) {
		return g.egress.ListEgress(ctx, &livekit.ListEgressRequest{
			RoomName: filter.RoomID,
			EgressId: filter.EgressID,
			Active:   filter.ActiveOnly,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list egress: %w", err)
	}
	out := make([]ports.EgressInfo, 0, len(resp.GetItems()))
	for _, item := range resp.GetItems() {
		info := g.toEgressInfo(item)
		// Some servers ignore the active filter; enforce it here.
		if filter.ActiveOnly && !info.Status.IsInProgress() {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (g *LiveKitGateway) RoomExists(ctx context.Context, roomID string) (bool, error) {
	_, err := g.GetRoom(ctx, roomID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ports.ErrRoomNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (g *LiveKitGateway) GetRoom(ctx context.Context, roomID string) (*ports.LiveRoom, error) {
	resp, err := resilience.Do(g.breaker, func() (*livekit.ListRoomsResponse, error) {
		return g.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{roomID}})
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms %q: %w", roomID, err)
	}
	for _, r := range resp.GetRooms() {
		if r.GetName() != roomID {
			continue
		}
		return &ports.LiveRoom{
			RoomID:          r.GetName(),
			NumParticipants: int(r.GetNumParticipants()),
			NumPublishers:   int(r.GetNumPublishers()),
			ActiveRecording: r.GetActiveRecording(),
		}, nil
	}
	return nil, ports.ErrRoomNotFound
}

func (g *LiveKitGateway) toEgressInfo(info *livekit.EgressInfo) ports.EgressInfo {
	return ToEgressInfo(info, g.cfg.Prefix)
}

// ToEgressInfo converts a LiveKit egress session. prefix is the storage prefix
// the session was started with; it is stripped from reported paths.
func ToEgressInfo(info *livekit.EgressInfo, prefix string) ports.EgressInfo {
	out := ports.EgressInfo{
		EgressID:  info.GetEgressId(),
		RoomID:    info.GetRoomName(),
		Status:    MapStatus(info.GetStatus()),
		StartedAt: fromNanos(info.GetStartedAt()),
		EndedAt:   fromNanos(info.GetEndedAt()),
		UpdatedAt: fromNanos(info.GetUpdatedAt()),
		Error:     info.GetError(),
		ErrorCode: info.GetErrorCode(),
		Details:   info.GetDetails(),
	}
	if rc := info.GetRoomComposite(); rc != nil {
		out.Layout = rc.GetLayout()
		if o, ok := rc.Options.(*livekit.RoomCompositeEgressRequest_Preset); ok {
			out.Encoding = o.Preset.String()
		}
		if outputs := rc.GetFileOutputs(); len(outputs) > 0 {
			out.FilePath = outputs[0].GetFilepath()
		}
	}
	if files := info.GetFileResults(); len(files) > 0 {
		f := files[0]
		out.Filename = f.GetFilename()
		out.Size = f.GetSize()
		out.Duration = time.Duration(f.GetDuration())
	}
	out.FilePath = strings.TrimPrefix(out.FilePath, prefix)
	out.Filename = strings.TrimPrefix(out.Filename, prefix)
	return out
}

// MapStatus maps LiveKit egress states onto recording states.
func MapStatus(s livekit.EgressStatus) model.RecordingStatus {
	switch s {
	case livekit.EgressStatus_EGRESS_STARTING:
		return model.StatusStarting
	case livekit.EgressStatus_EGRESS_ACTIVE:
		return model.StatusActive
	case livekit.EgressStatus_EGRESS_ENDING:
		return model.StatusEnding
	case livekit.EgressStatus_EGRESS_COMPLETE:
		return model.StatusComplete
	case livekit.EgressStatus_EGRESS_ABORTED:
		return model.StatusAborted
	case livekit.EgressStatus_EGRESS_LIMIT_REACHED:
		return model.StatusLimitReached
	default:
		return model.StatusFailed
	}
}

func encodingPreset(name string) (livekit.EncodingOptionsPreset, bool) {
	if name == "" {
		return 0, false
	}
	v, ok := livekit.EncodingOptionsPreset_value[strings.ToUpper(name)]
	return livekit.EncodingOptionsPreset(v), ok
}

func fromNanos(ns int64) time.Time {
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

var _ ports.Gateway = (*LiveKitGateway)(nil)
