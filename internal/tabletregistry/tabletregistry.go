// Package tabletregistry implements the TabletRegistry external
// interface: an in-memory tablet -> ownership-state map, gossiped to
// peers over hashicorp/memberlist.
package tabletregistry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Config holds gossip protocol configuration.
type Config struct {
	Enabled        bool
	BindPort       int
	SeedNodes      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// tabletState is the gossiped payload for one tablet.
type tabletState struct {
	TableID   uint64          `json:"table_id"`
	State     model.TabletState `json:"state"`
	UpdatedAt int64           `json:"updated_at"`
}

// snapshot is the full local gossip payload: this node's view of
// every tablet it tracks.
type snapshot struct {
	NodeID  string        `json:"node_id"`
	Tablets []tabletState `json:"tablets"`
}

// Registry is the concrete TabletRegistry: a local map of tablet
// state, kept eventually consistent across peers via memberlist.
type Registry struct {
	nodeID     string
	logger     *zap.Logger
	memberlist *memberlist.Memberlist

	mu      sync.RWMutex
	tablets map[uint64]tabletState
}

// New builds a registry and, if cfg.Enabled, joins the gossip ring.
func New(cfg Config, nodeID string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		nodeID:  nodeID,
		logger:  logger,
		tablets: make(map[uint64]tabletState),
	}

	if !cfg.Enabled {
		return r, nil
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = nodeID
	mlConfig.BindPort = cfg.BindPort
	mlConfig.GossipInterval = cfg.GossipInterval
	mlConfig.ProbeTimeout = cfg.ProbeTimeout
	mlConfig.ProbeInterval = cfg.ProbeInterval
	mlConfig.Delegate = r
	mlConfig.Events = &eventDelegate{registry: r}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("tabletregistry: create memberlist: %w", err)
	}
	r.memberlist = ml

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("failed to join some seed nodes", zap.Error(err))
		}
	}

	return r, nil
}

// GetTablet reports the ownership state for a tablet, mirroring the
// TabletRegistry.getTablet(key) contract keyed on tableId.
func (r *Registry) GetTablet(tableID uint64) (model.TabletState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.tablets[tableID]
	if !ok {
		return model.TabletNotOwned, false
	}
	return st.State, true
}

// SetTablet sets (or clears, via TabletNotOwned) the local state for
// a tablet. Local-only; peers receive it through memberlist's periodic
// push/pull state exchange (LocalState), since GetBroadcasts queues
// nothing.
func (r *Registry) SetTablet(tableID uint64, state model.TabletState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state == model.TabletNotOwned {
		delete(r.tablets, tableID)
		return
	}
	r.tablets[tableID] = tabletState{TableID: tableID, State: state, UpdatedAt: time.Now().Unix()}
}

// IncrementReadCount and IncrementWriteCount satisfy the
// TabletRegistry interface as no-op telemetry hooks; real counting is
// done by internal/metrics, which the object manager already calls
// directly on every read/write.
func (r *Registry) IncrementReadCount(tableID uint64)  {}
func (r *Registry) IncrementWriteCount(tableID uint64) {}

func (r *Registry) localSnapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := snapshot{NodeID: r.nodeID}
	for _, st := range r.tablets {
		s.Tablets = append(s.Tablets, st)
	}
	return s
}

func (r *Registry) mergeRemote(s snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range s.Tablets {
		existing, ok := r.tablets[st.TableID]
		if !ok || st.UpdatedAt > existing.UpdatedAt {
			r.tablets[st.TableID] = st
		}
	}
}

// NodeMeta implements memberlist.Delegate.
func (r *Registry) NodeMeta(limit int) []byte {
	data, _ := json.Marshal(r.localSnapshot())
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

// NotifyMsg implements memberlist.Delegate: a peer pushed its tablet
// ownership snapshot to us directly.
func (r *Registry) NotifyMsg(data []byte) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Warn("failed to unmarshal tablet gossip message", zap.Error(err))
		return
	}
	r.mergeRemote(s)
}

// GetBroadcasts implements memberlist.Delegate.
func (r *Registry) GetBroadcasts(overhead, limit int) [][]byte { return nil }

// LocalState implements memberlist.Delegate.
func (r *Registry) LocalState(join bool) []byte {
	data, _ := json.Marshal(r.localSnapshot())
	return data
}

// MergeRemoteState implements memberlist.Delegate.
func (r *Registry) MergeRemoteState(buf []byte, join bool) {
	var s snapshot
	if err := json.Unmarshal(buf, &s); err != nil {
		r.logger.Warn("failed to unmarshal tablet remote state", zap.Error(err))
		return
	}
	r.mergeRemote(s)
}

// Shutdown leaves the gossip ring.
func (r *Registry) Shutdown() error {
	if r.memberlist == nil {
		return nil
	}
	return r.memberlist.Shutdown()
}

type eventDelegate struct {
	registry *Registry
}

func (d *eventDelegate) NotifyJoin(node *memberlist.Node) {
	d.registry.logger.Info("peer joined", zap.String("node_id", node.Name), zap.String("addr", node.Addr.String()))
}

func (d *eventDelegate) NotifyLeave(node *memberlist.Node) {
	d.registry.logger.Info("peer left", zap.String("node_id", node.Name))
}

func (d *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	d.registry.logger.Debug("peer updated", zap.String("node_id", node.Name))
}
