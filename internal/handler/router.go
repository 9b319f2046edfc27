package handler

import (
	"github.com/gin-gonic/gin"

	"ludo-arena-backend/internal/gateway"
	"ludo-arena-backend/internal/middleware"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/lock"
	"ludo-arena-backend/internal/repository"
	"ludo-arena-backend/internal/service"
	"ludo-arena-backend/internal/ws"
)

// Deps bundles everything the handlers need.
type Deps struct {
	Accounts    *service.AccountService
	Wallet      *service.WalletService
	Battles     *service.BattleService
	Tournaments *service.TournamentService
	Payments    *service.PaymentService
	Tokens      *service.TokenService
	Stats       *repository.StatsRepository
	Gateway     *gateway.Client
	Hub         *ws.Hub
	Locks       *lock.Keyed
	RedirectURL string
}

// NewRouter builds the gin engine with all routes attached.
func NewRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS())

	authH := NewAuthHandler(deps)
	userH := NewUserHandler(deps)
	battleH := NewBattleHandler(deps)
	tournamentH := NewTournamentHandler(deps)
	paymentH := NewPaymentHandler(deps)
	paytmH := NewPaytmHandler(deps)
	adminH := NewAdminHandler(deps)
	wsH := NewWSHandler(deps)

	r.POST("/api/auth/register", authH.Register)
	r.POST("/api/auth/login", authH.Login)
	r.POST("/api/paytm/callback", paytmH.Callback)

	auth := r.Group("/api", middleware.Auth(deps.Tokens, deps.Accounts))
	{
		auth.GET("/me", userH.Me)
		auth.GET("/transactions", userH.Transactions)
		auth.POST("/kyc", userH.SubmitKYC)

		auth.POST("/battles", battleH.Create)
		auth.GET("/battles/open", battleH.ListOpen)
		auth.GET("/battles/mine", battleH.ListMine)
		auth.GET("/battles/:id", battleH.Get)
		auth.POST("/battles/:id/accept", battleH.Accept)
		auth.POST("/battles/:id/cancel", battleH.Cancel)
		auth.POST("/battles/:id/result", battleH.SubmitResult)

		auth.GET("/tournaments", tournamentH.List)
		auth.GET("/tournaments/:id", tournamentH.Get)
		auth.GET("/tournaments/:id/players", tournamentH.Players)
		auth.POST("/tournaments/:id/join", tournamentH.Join)

		auth.GET("/deposits/channel", paymentH.ActiveChannel)
		auth.POST("/deposits", paymentH.RequestDeposit)
		auth.GET("/deposits", paymentH.MyDeposits)
		auth.POST("/withdrawals", paymentH.RequestWithdrawal)
		auth.GET("/withdrawals", paymentH.MyWithdrawals)

		auth.POST("/paytm/initiate", paytmH.Initiate)

		auth.GET("/ws", wsH.Connect)
	}

	admin := auth.Group("/admin", middleware.RequireRole(model.RoleFinance, model.RoleSuperadmin))
	{
		admin.GET("/deposits", adminH.ListDeposits)
		admin.POST("/deposits/:id/approve", adminH.ApproveDeposit)
		admin.POST("/deposits/:id/reject", adminH.RejectDeposit)

		admin.GET("/withdrawals", adminH.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminH.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminH.RejectWithdrawal)

		admin.GET("/battles", adminH.ListBattles)
		admin.POST("/battles/:id/settle", adminH.SettleBattle)
		admin.POST("/battles/:id/decline", adminH.DeclineBattle)
		admin.POST("/battles/:id/void", adminH.VoidBattle)

		admin.POST("/tournaments", adminH.CreateTournament)
		admin.POST("/tournaments/:id/start", adminH.StartTournament)
		admin.POST("/tournaments/:id/complete", adminH.CompleteTournament)
		admin.POST("/tournaments/:id/cancel", adminH.CancelTournament)

		admin.GET("/users", adminH.ListUsers)
		admin.POST("/users/:id/suspend", adminH.SuspendUser)
		admin.POST("/users/:id/kyc", adminH.ReviewKYC)

		admin.GET("/channels", adminH.ListChannels)
		admin.POST("/channels", adminH.CreateChannel)
		admin.POST("/channels/:id/reset", adminH.ResetChannel)
		admin.POST("/channels/:id/active", adminH.SetChannelActive)

		admin.GET("/revenue", adminH.Revenue)
	}

	super := auth.Group("/admin", middleware.RequireRole(model.RoleSuperadmin))
	{
		super.POST("/users/:id/adjust", adminH.AdjustWallet)
		super.POST("/users/:id/role", adminH.SetRole)
	}

	return r
}
