// Package transport implements the RPC fabric of spec §6.1: the
// wire-visible surface a client uses to reach a provider, and the
// provider-to-provider calls migration makes to a destination. The
// underlying RPC runtime itself — "registration, handle creation, bulk
// buffer registration, address lookup, remote shutdown" — is out of
// scope per spec §1; this package consumes grpc-go through exactly the
// narrow slice it needs: one bidirectional unary call, multiplexed by an
// Op field, since there is no protoc toolchain available to generate the
// one-RPC-per-operation surface a real deployment would register.
package transport

import (
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// Op selects which engine/migration/registry operation an Envelope
// carries. Every Envelope is sparse: only the fields relevant to its Op
// are populated.
type Op string

const (
	OpOpen            Op = "open"
	OpCountDatabases  Op = "count_databases"
	OpListDatabases   Op = "list_databases"
	OpAttach          Op = "attach"
	OpRemove          Op = "remove"
	OpRemoveAll       Op = "remove_all"
	OpPut             Op = "put"
	OpGet             Op = "get"
	OpLength          Op = "length"
	OpExists          Op = "exists"
	OpErase           Op = "erase"
	OpPutMulti        Op = "put_multi"
	OpGetMulti        Op = "get_multi"
	OpLengthMulti     Op = "length_multi"
	OpExistsMulti     Op = "exists_multi"
	OpEraseMulti      Op = "erase_multi"
	OpPutPacked       Op = "put_packed"
	OpGetPacked       Op = "get_packed"
	OpLengthPacked    Op = "length_packed"
	OpListKeys        Op = "list_keys"
	OpListKeyVals     Op = "list_keyvals"
	OpValidateFileset Op = "validate_fileset"
	OpAttachFileset   Op = "attach_fileset"
	OpShutdown        Op = "shutdown"

	// Migration ops (spec §4.4/§4.5): all target the source provider,
	// which dials the destination over DstAddr and drives the transfer
	// through its own migration.Coordinator.
	OpMigrateKeys         Op = "migrate_keys"
	OpMigrateKeyRange     Op = "migrate_key_range"
	OpMigrateKeysPrefixed Op = "migrate_keys_prefixed"
	OpMigrateAllKeys      Op = "migrate_all_keys"
	OpMigrateDatabase     Op = "migrate_database"
)

// Envelope is the single request/response message every RPC carries.
// Request fields and response fields share one struct so the hand-rolled
// codec (codec.go) and ServiceDesc (service.go) only ever handle one
// Go type in either direction — the same sparse-message shape the
// original RPC surface's "inputs/outputs composed from primitives"
// (spec §6.1) describes, just gathered into one struct instead of one
// per operation.
type Envelope struct {
	Op Op

	// Addressing
	DBID   uint64
	DBName string

	// Single-op fields
	Key      []byte
	Value    []byte
	Capacity int
	Max      int

	// Multi/packed-op fields
	N          int
	KeysBuf    []byte
	ValsBuf    []byte
	Buf        []byte
	Capacities []uint64
	OriginAddr string

	// Listing fields
	Start  []byte
	Prefix []byte

	// Registry mutation
	AttachConfig *types.AttachConfig

	// Fileset migration (validate/attach on a destination)
	Fileset *types.FilesetDescriptor
	DstRoot string

	// Key/range/prefix migration (spec §4.4): migrate_* targets the
	// source provider, which dials DstAddr to reach the destination.
	// DstProvider is not read by the server: only DstAddr is dialed, and
	// dialing an RPC handle is opaque addressing per spec §1.
	DstAddr     string
	DstProvider string
	DstDB       uint64
	Keys        [][]byte
	Lower       []byte
	Upper       []byte
	Flag        types.MigrationFlag
	RemoveSrc   bool

	// --- Response fields ---
	Status       errs.Status
	ErrorMessage string
	RequiredSize int
	Sizes        []uint64
	Count        int
	BoolValue    bool
	IntValue     int
	DatabaseInfo *types.DatabaseInfo
	DatabaseList []types.DatabaseInfo
}

// AsError turns a non-success response Envelope back into a Go error on
// the caller side.
func (e *Envelope) AsError() error {
	if e.Status == errs.Success {
		return nil
	}
	return errs.New(e.Status)
}

// FromError fills in the Status/ErrorMessage response fields from a Go
// error, leaving other response fields at their zero value.
func FromError(env *Envelope, err error) *Envelope {
	env.Status = errs.StatusOf(err)
	if err != nil {
		env.ErrorMessage = err.Error()
	}
	return env
}
