package handler

import (
	"errors"
	"strconv"

	"wagerhub/internal/config"
	"wagerhub/internal/repository"
	"wagerhub/internal/service"
	"wagerhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	walletService *service.WalletService
	matchService  *service.MatchService
	betService    *service.BetService
	adminService  *service.AdminService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		walletService: service.NewWalletService(db, rdb),
		matchService:  service.NewMatchService(db, rdb, cfg),
		betService:    service.NewBetService(db, rdb, cfg),
		adminService:  service.NewAdminService(db, rdb, cfg),
	}
}

// writeError 核心错误分类到业务码的统一映射
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrDepositPurposeInvalid),
		errors.Is(err, service.ErrResolutionRequired):
		response.ParamError(c, err.Error())
	case errors.Is(err, repository.ErrMatchNotFound):
		response.BusinessError(c, response.CodeMatchNotFound, err.Error())
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrBetNotFound):
		response.BusinessError(c, response.CodeBetNotFound, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrUserSuspended):
		response.BusinessError(c, response.CodeUserSuspended, err.Error())
	case errors.Is(err, service.ErrNotAdmin),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrSpectatorIsPlayer),
		errors.Is(err, service.ErrOwnMatch):
		response.BusinessError(c, response.CodeNotAuthorized, err.Error())
	case errors.Is(err, repository.ErrSettlementExecuted),
		errors.Is(err, service.ErrSettlementNotEligible):
		response.BusinessError(c, response.CodeSettlementConflict, err.Error())
	case errors.Is(err, repository.ErrMatchStatusConflict),
		errors.Is(err, repository.ErrBetStatusConflict),
		errors.Is(err, repository.ErrOptimisticLock),
		errors.Is(err, service.ErrNoProposal),
		errors.Is(err, service.ErrProposalPending),
		errors.Is(err, service.ErrWinnerNotPlayer),
		errors.Is(err, service.ErrMatchNotLive),
		errors.Is(err, service.ErrDisputeWindowClosed),
		errors.Is(err, service.ErrDisputeNotAllowed):
		response.BusinessError(c, response.CodePreconditionFailed, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalances 查询当前用户三个钱包的余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalances(c *gin.Context) {
	userID := CurrentUserID(c)

	balances, err := h.walletService.Balances(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	data := gin.H{"user_id": userID}
	for purpose, balance := range balances {
		data[purpose] = balance.StringFixed(2)
	}
	response.Success(c, data)
}

// DepositRequest 充值请求
// 外部支付渠道（银行卡/加密货币/管理员手工上分）确认到账后调用
type DepositRequest struct {
	Purpose string `json:"purpose" binding:"required"`
	Source  string `json:"source" binding:"required,oneof=card crypto admin"`
	Amount  string `json:"amount" binding:"required"`
}

// Deposit 充值接口
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法金额")
		return
	}

	userID := CurrentUserID(c)
	if err := h.walletService.Deposit(c.Request.Context(), userID, req.Purpose, req.Source, amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "充值成功"})
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Withdraw 提现接口
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法金额")
		return
	}

	userID := CurrentUserID(c)
	if err := h.walletService.Withdraw(c.Request.Context(), userID, amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "提现成功"})
}

// ListTransactions 查询当前用户流水
// GET /api/v1/wallet/transactions?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := CurrentUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.walletService.Transactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 对局相关接口
// ============================================================

// CreateMatchRequest 创建对局请求
type CreateMatchRequest struct {
	Game      string `json:"game" binding:"required"`
	BetAmount string `json:"bet_amount" binding:"required"`
}

// CreateMatch 创建对局
// POST /api/v1/match/create
func (h *Handler) CreateMatch(c *gin.Context) {
	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	betAmount, err := decimal.NewFromString(req.BetAmount)
	if err != nil {
		response.ParamError(c, "bet_amount 不是合法金额")
		return
	}

	userID := CurrentUserID(c)
	match, err := h.matchService.CreateMatch(c.Request.Context(), userID, req.Game, betAmount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, match)
}

// JoinMatch 加入对局
// POST /api/v1/match/join
func (h *Handler) JoinMatch(c *gin.Context) {
	var req struct {
		MatchID string `json:"match_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	match, err := h.matchService.JoinMatch(c.Request.Context(), userID, req.MatchID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, match)
}

// ProposeAmountRequest 改注提案请求
type ProposeAmountRequest struct {
	MatchID string `json:"match_id" binding:"required,uuid"`
	Amount  string `json:"amount" binding:"required"`
}

// ProposeAmount 提出改注提案
// POST /api/v1/match/propose
func (h *Handler) ProposeAmount(c *gin.Context) {
	var req ProposeAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法金额")
		return
	}

	userID := CurrentUserID(c)
	if err := h.matchService.ProposeAmount(c.Request.Context(), userID, req.MatchID, amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "提案已记录"})
}

// AcceptProposal 接受改注提案
// POST /api/v1/match/proposal/accept
func (h *Handler) AcceptProposal(c *gin.Context) {
	var req struct {
		MatchID string `json:"match_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	match, err := h.matchService.AcceptProposal(c.Request.Context(), userID, req.MatchID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, match)
}

// RejectProposal 拒绝改注提案
// POST /api/v1/match/proposal/reject
func (h *Handler) RejectProposal(c *gin.Context) {
	var req struct {
		MatchID string `json:"match_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	if err := h.matchService.RejectProposal(c.Request.Context(), userID, req.MatchID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "提案已拒绝"})
}

// CancelMatch 撤单
// POST /api/v1/match/cancel
func (h *Handler) CancelMatch(c *gin.Context) {
	var req struct {
		MatchID string `json:"match_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	if err := h.matchService.CancelMatch(c.Request.Context(), userID, req.MatchID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "对局已取消，押注已退回"})
}

// ReportWinnerRequest 上报胜者请求
type ReportWinnerRequest struct {
	MatchID  string `json:"match_id" binding:"required,uuid"`
	WinnerID int64  `json:"winner_id" binding:"required"`
}

// ReportWinner 上报胜者
// POST /api/v1/match/report
func (h *Handler) ReportWinner(c *gin.Context) {
	var req ReportWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	if err := h.matchService.ReportWinner(c.Request.Context(), userID, req.MatchID, req.WinnerID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "胜者已上报，等待管理员审核"})
}

// RaiseDisputeRequest 发起争议请求
// 争议理由最短长度在这一层卡，核心不重复校验
type RaiseDisputeRequest struct {
	MatchID  string `json:"match_id" binding:"required,uuid"`
	Reason   string `json:"reason" binding:"required,min=10"`
	Evidence string `json:"evidence"`
}

// RaiseDispute 发起争议
// POST /api/v1/match/dispute
func (h *Handler) RaiseDispute(c *gin.Context) {
	var req RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := CurrentUserID(c)
	if err := h.matchService.RaiseDispute(c.Request.Context(), userID, req.MatchID, req.Reason, req.Evidence); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "争议已受理，结算已冻结"})
}

// GetMatch 查询对局详情
// GET /api/v1/match/detail?match_id=xxx
func (h *Handler) GetMatch(c *gin.Context) {
	matchID := c.Query("match_id")
	if matchID == "" {
		response.ParamError(c, "match_id 参数不能为空")
		return
	}

	match, err := h.matchService.GetMatch(c.Request.Context(), matchID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, match)
}

// ListWaitingMatches 大厅列表
// GET /api/v1/match/lobby?page=1&page_size=10
func (h *Handler) ListWaitingMatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	matches, total, err := h.matchService.ListWaiting(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      matches,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListMyMatches 当前用户参与的对局
// GET /api/v1/match/list?page=1&page_size=10
func (h *Handler) ListMyMatches(c *gin.Context) {
	userID := CurrentUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	matches, total, err := h.matchService.ListUserMatches(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      matches,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 观战投注接口
// ============================================================

// PlaceBetRequest 观战下注请求
type PlaceBetRequest struct {
	MatchID           string `json:"match_id" binding:"required,uuid"`
	PredictedWinnerID int64  `json:"predicted_winner_id" binding:"required"`
	Amount            string `json:"amount" binding:"required"`
}

// PlaceBet 观战下注
// POST /api/v1/bet/place
func (h *Handler) PlaceBet(c *gin.Context) {
	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法金额")
		return
	}

	userID := CurrentUserID(c)
	bet, err := h.betService.PlaceBet(c.Request.Context(), userID, req.MatchID, req.PredictedWinnerID, amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, bet)
}

// ListMatchBets 某对局的全部观战投注
// GET /api/v1/bet/match?match_id=xxx
func (h *Handler) ListMatchBets(c *gin.Context) {
	matchID := c.Query("match_id")
	if matchID == "" {
		response.ParamError(c, "match_id 参数不能为空")
		return
	}

	bets, err := h.betService.ListMatchBets(c.Request.Context(), matchID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": bets})
}

// ListMyBets 当前用户投注历史
// GET /api/v1/bet/list?page=1&page_size=10
func (h *Handler) ListMyBets(c *gin.Context) {
	userID := CurrentUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	bets, total, err := h.betService.ListUserBets(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      bets,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 管理员接口
// ============================================================

// ApproveMatchRequest 审核通过请求
type ApproveMatchRequest struct {
	MatchID  string `json:"match_id" binding:"required,uuid"`
	WinnerID int64  `json:"winner_id" binding:"required"`
}

// ApproveMatch 审核通过上报结果
// POST /api/v1/admin/match/approve
//
// 【关键点】审核只定胜负不动钱：开启5分钟争议窗口，
// 窗口结束后由结算任务移动资金
func (h *Handler) ApproveMatch(c *gin.Context) {
	var req ApproveMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adminID := CurrentUserID(c)
	if err := h.adminService.ApproveMatch(c.Request.Context(), adminID, req.MatchID, req.WinnerID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "审核通过，争议窗口已开启"})
}

// RejectMatch 驳回上报结果
// POST /api/v1/admin/match/reject
func (h *Handler) RejectMatch(c *gin.Context) {
	var req struct {
		MatchID string `json:"match_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adminID := CurrentUserID(c)
	if err := h.adminService.RejectMatch(c.Request.Context(), adminID, req.MatchID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已驳回，押注与观战本金均已退回"})
}

// ResolveDisputeRequest 裁决争议请求
type ResolveDisputeRequest struct {
	MatchID    string `json:"match_id" binding:"required,uuid"`
	WinnerID   int64  `json:"winner_id" binding:"required"`
	Resolution string `json:"resolution" binding:"required,min=10"`
}

// ResolveDispute 裁决争议并即刻结算
// POST /api/v1/admin/match/dispute/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adminID := CurrentUserID(c)
	if err := h.adminService.ResolveDispute(c.Request.Context(), adminID, req.MatchID, req.WinnerID, req.Resolution); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "争议已裁决，结算已执行"})
}
