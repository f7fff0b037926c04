package network

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/critterlabs/critterchain/core"
)

// GetBlocksRequest asks a peer for blocks starting at FromHeight.
type GetBlocksRequest struct {
	FromHeight int64 `json:"from_height"`
	Limit      int   `json:"limit"`
}

// BlocksResponse carries a batch of blocks.
type BlocksResponse struct {
	Blocks []*core.Block `json:"blocks"`
}

// BlockValidator validates a block before it is accepted into the chain.
type BlockValidator interface {
	ValidateBlock(block *core.Block) error
}

// BlockExecutor applies all transactions in a block against the state.
type BlockExecutor interface {
	ExecuteBlock(block *core.Block) error
}

// Syncer handles block synchronisation between nodes.
type Syncer struct {
	node      *Node
	bc        *core.Blockchain
	validator BlockValidator
	exec      BlockExecutor // may be nil; if set, state is also required
	state     core.State    // may be nil; used with exec to commit after each block
}

// NewSyncer creates a Syncer that requests missing blocks from peers.
// Pass non-nil exec and state so that synced blocks are fully applied to the
// local state; without them the node will have blocks but no account/asset state.
func NewSyncer(node *Node, bc *core.Blockchain, validator BlockValidator, exec BlockExecutor, state core.State) *Syncer {
	s := &Syncer{node: node, bc: bc, validator: validator, exec: exec, state: state}
	node.Handle(MsgHello, s.handleHello)
	node.Handle(MsgGetBlocks, s.handleGetBlocks)
	node.Handle(MsgBlocks, s.handleBlocks)
	return s
}

// handleHello triggers an initial block sync when a peer announces itself.
func (s *Syncer) handleHello(peer *Peer, _ Message) {
	fromHeight := s.bc.Height() + 1
	if err := s.RequestBlocks(peer, fromHeight); err != nil {
		log.Warn().Err(err).Str("peer", peer.ID).Msg("sync: request blocks")
	}
}

// SyncWithPeer requests missing blocks from the given peer.
// Call this after AddPeer to initiate an outbound sync.
func (s *Syncer) SyncWithPeer(peer *Peer) {
	fromHeight := s.bc.Height() + 1
	if err := s.RequestBlocks(peer, fromHeight); err != nil {
		log.Warn().Err(err).Str("peer", peer.ID).Msg("sync: request blocks")
	}
}

// RequestBlocks asks peer for blocks starting at fromHeight.
func (s *Syncer) RequestBlocks(peer *Peer, fromHeight int64) error {
	req, err := json.Marshal(GetBlocksRequest{FromHeight: fromHeight, Limit: 50})
	if err != nil {
		return err
	}
	return peer.Send(Message{Type: MsgGetBlocks, Payload: req})
}

func (s *Syncer) handleGetBlocks(peer *Peer, msg Message) {
	var req GetBlocksRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	blocks := make([]*core.Block, 0, req.Limit)
	for h := req.FromHeight; h < req.FromHeight+int64(req.Limit); h++ {
		b, err := s.bc.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	data, err := json.Marshal(BlocksResponse{Blocks: blocks})
	if err != nil {
		log.Error().Err(err).Msg("sync: marshal blocks response")
		return
	}
	if err := peer.Send(Message{Type: MsgBlocks, Payload: data}); err != nil {
		log.Warn().Err(err).Str("peer", peer.ID).Msg("sync: send blocks")
	}
}

func (s *Syncer) handleBlocks(peer *Peer, msg Message) {
	var resp BlocksResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return
	}
	for _, b := range resp.Blocks {
		if s.validator != nil {
			if err := s.validator.ValidateBlock(b); err != nil {
				log.Warn().Err(err).Int64("height", b.Header.Height).Msg("sync: block validation failed")
				return // stop processing blocks from this peer
			}
		}

		// Take a snapshot so we can revert if AddBlock fails.
		var snapID int
		if s.exec != nil && s.state != nil {
			var err error
			snapID, err = s.state.Snapshot()
			if err != nil {
				log.Error().Err(err).Int64("height", b.Header.Height).Msg("sync: snapshot failed")
				continue
			}
			if err := s.exec.ExecuteBlock(b); err != nil {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					log.Fatal().Err(revErr).AnErr("exec_err", err).Int64("height", b.Header.Height).Msg("sync: revert failed after exec error")
				}
				log.Warn().Err(err).Int64("height", b.Header.Height).Msg("sync: block execution failed")
				continue
			}
		}

		// (A) Verify state root matches after execution.
		if s.exec != nil && s.state != nil {
			computedRoot := s.state.ComputeRoot()
			if b.Header.StateRoot != "" && computedRoot != b.Header.StateRoot {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					log.Fatal().Err(revErr).Int64("height", b.Header.Height).Msg("sync: revert failed after state root mismatch")
				}
				log.Warn().Int64("height", b.Header.Height).Str("computed", computedRoot).Str("want", b.Header.StateRoot).Msg("sync: state root mismatch")
				return
			}
		}

		if err := s.bc.AddBlock(b); err != nil {
			if s.exec != nil && s.state != nil {
				if revErr := s.state.RevertToSnapshot(snapID); revErr != nil {
					log.Fatal().Err(revErr).AnErr("add_err", err).Int64("height", b.Header.Height).Msg("sync: revert failed after add error")
				}
			}
			log.Warn().Err(err).Int64("height", b.Header.Height).Msg("sync: add block failed")
			continue
		}

		if s.exec != nil && s.state != nil {
			if err := s.state.Commit(); err != nil {
				log.Fatal().Err(err).Int64("height", b.Header.Height).Msg("sync: state commit failed")
			}
		}
	}

	// A full batch means the peer may have more blocks; keep requesting.
	if len(resp.Blocks) >= 50 {
		nextHeight := s.bc.Height() + 1
		if err := s.RequestBlocks(peer, nextHeight); err != nil {
			log.Warn().Err(err).Str("peer", peer.ID).Msg("sync: follow-up request failed")
		}
	}
}
