package transport

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/engine"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/log"
	"github.com/kvfabric/kvfabric/pkg/metrics"
	"github.com/kvfabric/kvfabric/pkg/migration"
)

// Server dispatches Envelopes arriving over the RPC fabric to the local
// engine. It implements KVServer.
type Server struct {
	engine      *engine.Engine
	comparators *comparator.Registry
	migration   *migration.Coordinator
	// onShutdown is invoked asynchronously when a privileged shutdown
	// request arrives (spec §5's "privileged shutdown RPC"); it is set
	// by pkg/provider to stop the grpc.Server without deadlocking inside
	// this handler.
	onShutdown func()
	logger      zerolog.Logger
}

// NewServer builds a Server over a provider's engine, comparator
// registry (needed to validate incoming filesets), and migration
// coordinator (spec §4.4's migrate_* ops are client-triggered RPCs
// against the source provider, dispatched here).
func NewServer(e *engine.Engine, comparators *comparator.Registry, coord *migration.Coordinator, onShutdown func()) *Server {
	return &Server{engine: e, comparators: comparators, migration: coord, onShutdown: onShutdown, logger: log.WithComponent("transport")}
}

// SetProviderID tags every subsequent log line from this Server with the
// owning provider's id, matching the ambient-stack logging contract
// (every handler logs provider id, db id, and op name). Optional: a
// zero value is the default for tests that dial a bare Server directly.
func (s *Server) SetProviderID(id uint64) {
	s.logger = log.WithProvider(strconv.FormatUint(id, 10))
}

// Invoke dispatches req.Op to the matching engine/migration call,
// logging entry/exit at Debug (Error if the op failed) and recording
// per-op request counters and duration.
func (s *Server) Invoke(ctx context.Context, req *Envelope) (*Envelope, error) {
	logger := s.logger.With().Str("op", string(req.Op)).Uint64("db_id", req.DBID).Logger()
	logger.Debug().Msg("request")

	timer := metrics.NewTimer()
	resp, err := s.dispatch(ctx, req)
	timer.ObserveDurationVec(metrics.RequestDuration, string(req.Op))

	status := errs.Success
	if resp != nil {
		status = resp.Status
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Op), status.String()).Inc()

	if status != errs.Success {
		logger.Error().Str("status", status.String()).Msg("request failed")
	} else {
		logger.Debug().Dur("duration", timer.Duration()).Msg("request handled")
	}
	return resp, err
}

// dispatch is Invoke's actual op switch, split out so Invoke can wrap it
// uniformly with logging and metrics without a log/metric call at every
// one of the switch's many return points.
func (s *Server) dispatch(ctx context.Context, req *Envelope) (*Envelope, error) {
	resp := &Envelope{}
	switch req.Op {
	case OpOpen:
		id, err := s.engine.Open(req.DBName)
		resp.DBID = id
		return FromError(resp, err), nil

	case OpCountDatabases:
		resp.IntValue = s.engine.CountDatabases()
		return resp, nil

	case OpListDatabases:
		resp.DatabaseList = s.engine.ListDatabases(req.Max)
		return resp, nil

	case OpAttach:
		if req.AttachConfig == nil {
			return FromError(resp, errs.New(errs.InvalidArg)), nil
		}
		info, err := s.engine.Attach(*req.AttachConfig)
		resp.DatabaseInfo = &info
		return FromError(resp, err), nil

	case OpRemove:
		err := s.engine.Remove(req.DBID)
		return FromError(resp, err), nil

	case OpRemoveAll:
		n, err := s.engine.RemoveAll()
		resp.Count = n
		return FromError(resp, err), nil

	case OpPut:
		err := s.engine.Put(ctx, req.DBID, req.Key, req.Value)
		return FromError(resp, err), nil

	case OpGet:
		r, _ := s.engine.Get(ctx, req.DBID, req.Key, req.Capacity)
		resp.Value = r.Value
		resp.RequiredSize = r.RequiredSize
		resp.Status = r.Status
		return resp, nil

	case OpLength:
		n, err := s.engine.Length(ctx, req.DBID, req.Key)
		resp.IntValue = n
		return FromError(resp, err), nil

	case OpExists:
		ok, err := s.engine.Exists(ctx, req.DBID, req.Key)
		resp.BoolValue = ok
		return FromError(resp, err), nil

	case OpErase:
		err := s.engine.Erase(ctx, req.DBID, req.Key)
		return FromError(resp, err), nil

	case OpPutMulti:
		r, err := s.engine.PutMulti(ctx, req.DBID, req.N, req.KeysBuf, req.ValsBuf)
		resp.Sizes = r.Sizes
		resp.Status = r.Status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpGetMulti:
		valsBuf, sizes, status, err := s.engine.GetMulti(ctx, req.DBID, req.N, req.KeysBuf, req.Capacities)
		resp.ValsBuf = valsBuf
		resp.Sizes = sizes
		resp.Status = status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpLengthMulti:
		sizes, status, err := s.engine.LengthMulti(ctx, req.DBID, req.N, req.KeysBuf)
		resp.Sizes = sizes
		resp.Status = status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpExistsMulti:
		flags, err := s.engine.ExistsMulti(ctx, req.DBID, req.N, req.KeysBuf)
		resp.Sizes = flags
		return FromError(resp, err), nil

	case OpEraseMulti:
		err := s.engine.EraseMulti(ctx, req.DBID, req.N, req.KeysBuf)
		return FromError(resp, err), nil

	case OpPutPacked:
		r, err := s.engine.PutPacked(ctx, req.DBID, req.N, req.Buf, req.OriginAddr)
		resp.Sizes = r.Sizes
		resp.Status = r.Status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpGetPacked:
		buf, status, err := s.engine.GetPacked(ctx, req.DBID, req.N, req.Buf, uint64(req.Capacity))
		resp.Buf = buf
		resp.Status = status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpLengthPacked:
		buf, status, err := s.engine.LengthPacked(ctx, req.DBID, req.N, req.Buf)
		resp.Buf = buf
		resp.Status = status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpListKeys:
		r, err := s.engine.ListKeys(ctx, req.DBID, req.Start, req.Prefix, req.Max, req.Capacities)
		resp.Buf = r.Buf
		resp.Sizes = r.Sizes
		resp.Count = r.Count
		resp.Status = r.Status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpListKeyVals:
		r, err := s.engine.ListKeyVals(ctx, req.DBID, req.Start, req.Prefix, req.Max, req.Capacities)
		resp.Buf = r.Buf
		resp.Sizes = r.Sizes
		resp.Count = r.Count
		resp.Status = r.Status
		if err != nil {
			return FromError(resp, err), nil
		}
		return resp, nil

	case OpMigrateKeys:
		remote, err := s.dialRemote(ctx, req)
		if err != nil {
			return FromError(resp, err), nil
		}
		defer remote.Close()
		err = s.migration.MigrateKeys(ctx, req.DBID, remote, req.DstDB, req.Keys, req.Flag)
		return FromError(resp, err), nil

	case OpMigrateKeyRange:
		remote, err := s.dialRemote(ctx, req)
		if err != nil {
			return FromError(resp, err), nil
		}
		defer remote.Close()
		err = s.migration.MigrateKeyRange(ctx, req.DBID, remote, req.DstDB, req.Lower, req.Upper, req.Flag)
		return FromError(resp, err), nil

	case OpMigrateKeysPrefixed:
		remote, err := s.dialRemote(ctx, req)
		if err != nil {
			return FromError(resp, err), nil
		}
		defer remote.Close()
		err = s.migration.MigrateKeysPrefixed(ctx, req.DBID, remote, req.DstDB, req.Prefix, req.Flag)
		return FromError(resp, err), nil

	case OpMigrateAllKeys:
		remote, err := s.dialRemote(ctx, req)
		if err != nil {
			return FromError(resp, err), nil
		}
		defer remote.Close()
		err = s.migration.MigrateAllKeys(ctx, req.DBID, remote, req.DstDB, req.Flag)
		return FromError(resp, err), nil

	case OpMigrateDatabase:
		remote, err := s.dialRemote(ctx, req)
		if err != nil {
			return FromError(resp, err), nil
		}
		defer remote.Close()
		err = s.migration.MigrateDatabase(ctx, req.DBID, remote, req.DstRoot, req.RemoveSrc)
		return FromError(resp, err), nil

	case OpValidateFileset:
		err := migration.ValidateFileset(s.engine, s.comparators, req.Fileset)
		return FromError(resp, err), nil

	case OpAttachFileset:
		info, err := migration.AttachFileset(s.engine, req.Fileset, req.DstRoot)
		resp.DatabaseInfo = &info
		return FromError(resp, err), nil

	case OpShutdown:
		if s.onShutdown != nil {
			go s.onShutdown()
		}
		return resp, nil

	default:
		return FromError(resp, errs.New(errs.InvalidArg)), nil
	}
}

// dialRemote opens the RPC handle spec §4.4's migrate_* algorithm
// describes as step one: "the source provider opens an RPC handle to
// the destination provider". Dialing failures surface as Migration,
// matching the "any destination put fails" failure path's status.
func (s *Server) dialRemote(ctx context.Context, req *Envelope) (*Client, error) {
	c, err := Dial(ctx, req.DstAddr)
	if err != nil {
		return nil, errs.Wrap(errs.Migration, err)
	}
	return c, nil
}
