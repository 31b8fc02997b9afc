package coach

// #region imports
import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #endregion

// #region interfaces

// SnapshotStore persists session state outside the process. Load must return
// an error matching engine.ErrSessionNotFound when nothing is stored.
type SnapshotStore interface {
	Save(ctx context.Context, id string, st engine.State) error
	Load(ctx context.Context, id string) (engine.State, error)
	Delete(ctx context.Context, id string) error
}

// Locker serializes work on one session across processes.
type Locker interface {
	Lock(ctx context.Context, id string) (release func(), err error)
}

// #endregion

// #region service-struct

// Options wires the service's optional collaborators.
type Options struct {
	// Snapshots keeps state across restarts. Nil keeps sessions in memory only.
	Snapshots SnapshotStore
	// Locker is set when Snapshots is shared with other processes. The
	// snapshot is then authoritative and reloaded under the lock every call.
	Locker Locker
	// Store receives the annotation/reply logs and final reports. Optional.
	Store  *state.Store
	Logger *zap.Logger
}

// Service is the collaborator-facing API: live sessions on top of the
// engine, plus persistence and logging.
type Service struct {
	eng       *engine.Engine
	snapshots SnapshotStore
	locker    Locker
	store     *state.Store
	log       *zap.Logger
}

// ReplyRequest carries the counterpart's character and scenario brief.
// Instructions may be JSON or plain text.
type ReplyRequest struct {
	Profile      character.Profile `json:"profile"`
	Instructions string            `json:"instructions,omitempty"`
}

// New creates a Service.
func New(eng *engine.Engine, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		eng:       eng,
		snapshots: opts.Snapshots,
		locker:    opts.Locker,
		store:     opts.Store,
		log:       opts.Logger,
	}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine {
	return s.eng
}

// #endregion

// #region start

// StartSession creates or resets a session. An empty id gets a fresh UUID.
func (s *Service) StartSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	st := s.eng.Start(id)
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, id, st); err != nil {
			return "", fmt.Errorf("save session %s: %w", id, err)
		}
	}
	s.log.Info("session started", zap.String("session_id", id))
	return id, nil
}

// #endregion

// #region process

// ProcessTurn applies one turn. A rejected turn is not an error: the
// annotation's Result says why and the session keeps its previous state.
func (s *Service) ProcessTurn(ctx context.Context, id string, turn conversation.Turn) (engine.Annotation, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return engine.Annotation{}, err
	}
	defer release()

	if err := s.ensureLive(ctx, id); err != nil {
		return engine.Annotation{}, err
	}

	var commit func(engine.State) error
	if s.snapshots != nil {
		commit = func(st engine.State) error { return s.snapshots.Save(ctx, id, st) }
	}
	ann, _, err := s.eng.ProcessFunc(id, turn, commit)
	if err != nil {
		return engine.Annotation{}, fmt.Errorf("process %s: %w", id, err)
	}

	if s.store != nil {
		entry, err := logging.NewAnnotationEntry(id, ann)
		if err == nil {
			err = logging.LogAnnotation(s.store.DB(), entry)
		}
		if err != nil {
			s.log.Warn("annotation log failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return ann, nil
}

// #endregion

// #region reply

// GenerateReply produces the counterpart's next utterance for a session.
func (s *Service) GenerateReply(ctx context.Context, id string, req ReplyRequest) (strategy.Reply, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return strategy.Reply{}, err
	}
	defer release()

	if err := s.ensureLive(ctx, id); err != nil {
		return strategy.Reply{}, err
	}
	reply, err := s.eng.ReplyFor(id, req.Profile, character.ParseInstructions(req.Instructions))
	if err != nil {
		return strategy.Reply{}, fmt.Errorf("reply %s: %w", id, err)
	}

	s.log.Debug("reply generated", zap.String("session_id", id), zap.String("strategy", string(reply.Strategy)))
	if s.store != nil {
		entry, err := logging.NewReplyEntry(id, reply)
		if err == nil {
			err = logging.LogReply(s.store.DB(), entry)
		}
		if err != nil {
			s.log.Warn("reply log failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return reply, nil
}

// #endregion

// #region end

// EndSession closes a session and returns its final report. The report is
// archived when a Store is configured.
func (s *Service) EndSession(ctx context.Context, id string) (scoring.Report, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return scoring.Report{}, err
	}
	defer release()

	if err := s.ensureLive(ctx, id); err != nil {
		return scoring.Report{}, err
	}
	report, _, err := s.eng.End(id)
	if err != nil {
		return scoring.Report{}, fmt.Errorf("end %s: %w", id, err)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, id); err != nil {
			return report, fmt.Errorf("delete snapshot %s: %w", id, err)
		}
	}
	if s.store != nil {
		if err := s.store.SaveReport(id, report); err != nil {
			return report, fmt.Errorf("save report %s: %w", id, err)
		}
	}
	s.log.Info("session ended", zap.String("session_id", id),
		zap.Float64("overall", report.Overall), zap.String("level", report.Level))
	return report, nil
}

// #endregion

// #region batch

// Assess scores a complete transcript without touching any session.
func (s *Service) Assess(_ context.Context, turns []conversation.Turn) scoring.Report {
	return s.eng.Assess(turns)
}

// AssessMany scores independent transcripts in parallel.
func (s *Service) AssessMany(ctx context.Context, transcripts [][]conversation.Turn) ([]scoring.Report, error) {
	return s.eng.AssessMany(ctx, transcripts)
}

// Session returns a copy of a session's current state.
func (s *Service) Session(ctx context.Context, id string) (engine.State, error) {
	if s.locker == nil {
		if err := s.ensureLive(ctx, id); err != nil {
			return engine.State{}, err
		}
		return s.eng.Snapshot(id)
	}
	if s.snapshots == nil {
		return engine.State{}, errors.New("locker configured without snapshots")
	}
	return s.snapshots.Load(ctx, id)
}

// Analytics summarizes the sessions live in this process.
func (s *Service) Analytics() engine.Analytics {
	return s.eng.Analytics()
}

// #endregion

// #region helpers

// lock takes the cross-process lock when one is configured.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", id, err)
	}
	return release, nil
}

// ensureLive makes sure the engine holds id. With a Locker the snapshot is
// authoritative and always reloaded; otherwise it is only read on a miss,
// e.g. after a restart.
func (s *Service) ensureLive(ctx context.Context, id string) error {
	if s.snapshots == nil {
		if _, err := s.eng.Snapshot(id); err != nil {
			return fmt.Errorf("session %s: %w", id, engine.ErrSessionNotFound)
		}
		return nil
	}
	if s.locker == nil {
		if _, err := s.eng.Snapshot(id); err == nil {
			return nil
		}
	}
	st, err := s.snapshots.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	if s.locker != nil {
		s.eng.Restore(id, st)
	} else {
		s.eng.RestoreIfAbsent(id, st)
	}
	return nil
}

// #endregion
