package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"donorpay/native/rewards"
)

// ContributionParam is the wire form of a contribution category tag.
type ContributionParam struct {
	Class string `json:"class"`
	Ref   string `json:"ref,omitempty"`
}

func (p ContributionParam) toKind() (rewards.ContributionKind, error) {
	class, err := rewards.ParseContributionClass(p.Class)
	if err != nil {
		return rewards.ContributionKind{}, err
	}
	return rewards.ContributionKind{Class: class, Ref: strings.TrimSpace(p.Ref)}, nil
}

type logAirdropParams struct {
	Recipient    string            `json:"recipient"`
	ChannelID    string            `json:"channelId,omitempty"`
	Contribution ContributionParam `json:"contribution"`
	Deposit      string            `json:"deposit,omitempty"`
}

type donateParams struct {
	Caller       string            `json:"caller"`
	Contribution ContributionParam `json:"contribution"`
	Deposit      string            `json:"deposit"`
}

type selectRewardKindParams struct {
	Caller       string            `json:"caller"`
	ChannelID    string            `json:"channelId"`
	Contribution ContributionParam `json:"contribution"`
}

type flowParams struct {
	Caller  string `json:"caller"`
	Deposit string `json:"deposit,omitempty"`
}

type markPaidParams struct {
	Recipient string `json:"recipient"`
}

type getDonorParams struct {
	WalletID string `json:"walletId"`
}

type listParams struct {
	Start        uint64             `json:"start"`
	Limit        uint64             `json:"limit"`
	Contribution *ContributionParam `json:"contribution,omitempty"`
}

type projectTotalsParams struct {
	ProjectID string `json:"projectId"`
}

type positionResult struct {
	Position uint64 `json:"position"`
}

type callResult struct {
	CallID string `json:"callId"`
}

type totalResult struct {
	Total string `json:"total"`
}

type countResult struct {
	Count uint64 `json:"count"`
}

func decodeParams(req *RPCRequest, target interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object")
	}
	decoder := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func parseDeposit(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid deposit %q", raw)
	}
	return amount, nil
}

// writeEngineError maps engine errors onto the JSON-RPC taxonomy: validation
// problems are invalid params, privilege problems unauthorized, everything
// else a server error with the engine's message.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, rewards.ErrInvalidContribution),
		errors.Is(err, rewards.ErrInvalidLimit),
		errors.Is(err, rewards.ErrDepositRequired),
		errors.Is(err, rewards.ErrChannelRequired):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error())
	case errors.Is(err, rewards.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, id, codeUnauthorized, err.Error())
	default:
		writeError(w, http.StatusOK, id, codeServerError, err.Error())
	}
}

func (s *Server) handleLogAirdrop(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params logAirdropParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	kind, err := params.Contribution.toKind()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	deposit, err := parseDeposit(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pos, err := s.engine.RecordAirdrop(s.operator, params.Recipient, params.ChannelID, kind, deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{Position: pos})
}

func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params donateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	kind, err := params.Contribution.toKind()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	deposit, err := parseDeposit(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pos, err := s.engine.Donate(params.Caller, kind, deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{Position: pos})
}

func (s *Server) handleSelectRewardKind(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params selectRewardKindParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	kind, err := params.Contribution.toKind()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.engine.SelectRewardKind(params.Caller, params.ChannelID, kind); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"added": true})
}

func (s *Server) handleSendItemReward(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params flowParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	deposit, err := parseDeposit(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	callID, err := s.engine.BeginItemIssuance(r.Context(), params.Caller, deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, callResult{CallID: callID})
}

func (s *Server) handleSendBalanceReward(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params flowParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	deposit, err := parseDeposit(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	callID, err := s.engine.BeginBalanceTransfer(r.Context(), params.Caller, deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, callResult{CallID: callID})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params markPaidParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.engine.MarkPaid(s.operator, params.Recipient); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paid": true})
}

func (s *Server) handleGetDonor(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params getDonorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	donor, ok, err := s.engine.GetDonor(params.WalletID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeServerError, rewards.ErrDonorNotFound.Error())
		return
	}
	writeResult(w, req.ID, donor)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var page *rewards.PaginatedRecords
	var err error
	if params.Contribution != nil {
		class, classErr := rewards.ParseContributionClass(params.Contribution.Class)
		if classErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, classErr.Error())
			return
		}
		page, err = s.engine.ListRecordsByContribution(class, strings.TrimSpace(params.Contribution.Ref), params.Start, params.Limit)
	} else {
		page, err = s.engine.ListRecords(params.Start, params.Limit)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, page)
}

func (s *Server) handleListDonors(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var page *rewards.PaginatedDonors
	var err error
	if params.Contribution != nil {
		class, classErr := rewards.ParseContributionClass(params.Contribution.Class)
		if classErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, classErr.Error())
			return
		}
		page, err = s.engine.ListDonorsByContribution(class, strings.TrimSpace(params.Contribution.Ref), params.Start, params.Limit)
	} else {
		page, err = s.engine.ListDonors(params.Start, params.Limit)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, page)
}

func (s *Server) handleProjectTotals(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params projectTotalsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	totals, err := s.engine.ProjectTotalsFor(strings.TrimSpace(params.ProjectID))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totals)
}

func (s *Server) handleTotalDistributed(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	total, err := s.engine.TotalDistributed()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalResult{Total: total.String()})
}

func (s *Server) handleDonorCount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	count, err := s.engine.DonorCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, countResult{Count: count})
}
