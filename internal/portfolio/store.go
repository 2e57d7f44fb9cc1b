package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"paperperps/internal/types"
)

// PGStore is the Postgres-backed ledger store. Portfolio uniqueness is a
// hard constraint (unique user_id), so concurrent first-time creation cannot
// produce duplicates.
type PGStore struct {
	pool            *pgxpool.Pool
	startingBalance decimal.Decimal
}

func NewPGStore(pool *pgxpool.Pool, startingBalance decimal.Decimal) *PGStore {
	return &PGStore{pool: pool, startingBalance: startingBalance}
}

func (s *PGStore) Ensure(ctx context.Context, userID string) (Portfolio, error) {
	_, err := s.pool.Exec(ctx, "insert into portfolios (user_id, balance) values ($1, $2) on conflict (user_id) do nothing", userID, s.startingBalance)
	if err != nil {
		return Portfolio{}, err
	}
	return s.Get(ctx, userID)
}

func (s *PGStore) Get(ctx context.Context, userID string) (Portfolio, error) {
	var p Portfolio
	var portfolioID string
	err := s.pool.QueryRow(ctx, "select id, user_id, balance from portfolios where user_id = $1", userID).Scan(&portfolioID, &p.UserID, &p.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	rows, err := s.pool.Query(ctx, "select id, symbol, margin, leverage, size, entry_price, is_long, opened_at, is_open, closed_at, coalesce(close_price, 0), coalesce(profit, 0) from positions where portfolio_id = $1 order by opened_at", portfolioID)
	if err != nil {
		return Portfolio{}, err
	}
	defer rows.Close()
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return Portfolio{}, err
		}
		p.Positions = append(p.Positions, pos)
	}
	return p, rows.Err()
}

func (s *PGStore) OpenPosition(ctx context.Context, userID string, pos Position) (decimal.Decimal, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)
	var portfolioID string
	var balance decimal.Decimal
	err = tx.QueryRow(ctx, "update portfolios set balance = balance - $2 where user_id = $1 and balance >= $2 returning id, balance", userID, pos.Margin).Scan(&portfolioID, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrInsufficientBalance
		}
		return decimal.Zero, err
	}
	_, err = tx.Exec(ctx, "insert into positions (id, portfolio_id, symbol, margin, leverage, size, entry_price, is_long, opened_at, is_open) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)",
		pos.ID, portfolioID, string(pos.Symbol), pos.Margin, pos.Leverage, pos.Size, pos.EntryPrice, pos.IsLong, pos.OpenedAt)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *PGStore) ClosePosition(ctx context.Context, userID string, cl Close) (decimal.Decimal, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)
	var portfolioID string
	err = tx.QueryRow(ctx, `update positions p set is_open = false, closed_at = $3, close_price = $4, profit = $5
		from portfolios pf
		where p.id = $2 and p.portfolio_id = pf.id and pf.user_id = $1 and p.is_open
		returning pf.id`,
		userID, cl.PositionID, cl.ClosedAt, cl.ClosePrice, cl.Profit).Scan(&portfolioID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrPositionNotFound
		}
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err = tx.QueryRow(ctx, "update portfolios set balance = balance + $2 where id = $1 returning balance", portfolioID, cl.BalanceDelta).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *PGStore) OpenPortfolios(ctx context.Context) ([]Portfolio, error) {
	rows, err := s.pool.Query(ctx, `select pf.user_id, pf.balance, p.id, p.symbol, p.margin, p.leverage, p.size, p.entry_price, p.is_long, p.opened_at, p.is_open, p.closed_at, coalesce(p.close_price, 0), coalesce(p.profit, 0)
		from portfolios pf
		join positions p on p.portfolio_id = pf.id and p.is_open
		order by pf.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Portfolio
	for rows.Next() {
		var userID string
		var balance decimal.Decimal
		pos, err := scanUserPosition(rows, &userID, &balance)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].UserID != userID {
			out = append(out, Portfolio{UserID: userID, Balance: balance})
		}
		last := &out[len(out)-1]
		last.Positions = append(last.Positions, pos)
	}
	return out, rows.Err()
}

func (s *PGStore) ApplySweep(ctx context.Context, userID string, closes []Close) (int, error) {
	if len(closes) == 0 {
		return 0, nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	applied := 0
	delta := decimal.Zero
	for _, cl := range closes {
		tag, err := tx.Exec(ctx, `update positions p set is_open = false, closed_at = $3, close_price = $4, profit = $5
			from portfolios pf
			where p.id = $2 and p.portfolio_id = pf.id and pf.user_id = $1 and p.is_open`,
			userID, cl.PositionID, cl.ClosedAt, cl.ClosePrice, cl.Profit)
		if err != nil {
			return 0, err
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		applied++
		delta = delta.Add(cl.BalanceDelta)
	}
	if applied > 0 {
		if _, err := tx.Exec(ctx, "update portfolios set balance = balance + $2 where user_id = $1", userID, delta); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return applied, nil
}

func (s *PGStore) ClosedPositionsByUser(ctx context.Context) ([]UserPositions, error) {
	rows, err := s.pool.Query(ctx, `select pf.user_id, u.display_name, p.id, p.symbol, p.margin, p.leverage, p.size, p.entry_price, p.is_long, p.opened_at, p.is_open, p.closed_at, coalesce(p.close_price, 0), coalesce(p.profit, 0)
		from portfolios pf
		join users u on u.id = pf.user_id
		left join positions p on p.portfolio_id = pf.id and not p.is_open
		order by pf.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserPositions
	for rows.Next() {
		var userID, displayName string
		var posID *string
		var symbol *string
		var margin, size, entryPrice, closePrice, profit *decimal.Decimal
		var leverage *int
		var isLong, isOpen *bool
		var openedAt, closedAt *time.Time
		if err := rows.Scan(&userID, &displayName, &posID, &symbol, &margin, &leverage, &size, &entryPrice, &isLong, &openedAt, &isOpen, &closedAt, &closePrice, &profit); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].UserID != userID {
			out = append(out, UserPositions{UserID: userID, DisplayName: displayName})
		}
		if posID == nil {
			continue
		}
		last := &out[len(out)-1]
		last.Positions = append(last.Positions, Position{
			ID:         *posID,
			Symbol:     types.Symbol(*symbol),
			Margin:     *margin,
			Leverage:   *leverage,
			Size:       *size,
			EntryPrice: *entryPrice,
			IsLong:     *isLong,
			OpenedAt:   *openedAt,
			IsOpen:     *isOpen,
			ClosedAt:   closedAt,
			ClosePrice: *closePrice,
			Profit:     *profit,
		})
	}
	return out, rows.Err()
}

func (s *PGStore) Reset(ctx context.Context, userID string) (Portfolio, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Portfolio{}, err
	}
	defer tx.Rollback(ctx)
	var portfolioID string
	err = tx.QueryRow(ctx, "update portfolios set balance = $2 where user_id = $1 returning id", userID, s.startingBalance).Scan(&portfolioID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	if _, err := tx.Exec(ctx, "delete from positions where portfolio_id = $1", portfolioID); err != nil {
		return Portfolio{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Portfolio{}, err
	}
	return Portfolio{UserID: userID, Balance: s.startingBalance}, nil
}

func scanPosition(rows pgx.Rows) (Position, error) {
	var pos Position
	var symbol string
	err := rows.Scan(&pos.ID, &symbol, &pos.Margin, &pos.Leverage, &pos.Size, &pos.EntryPrice, &pos.IsLong, &pos.OpenedAt, &pos.IsOpen, &pos.ClosedAt, &pos.ClosePrice, &pos.Profit)
	pos.Symbol = types.Symbol(symbol)
	return pos, err
}

func scanUserPosition(rows pgx.Rows, userID *string, balance *decimal.Decimal) (Position, error) {
	var pos Position
	var symbol string
	err := rows.Scan(userID, balance, &pos.ID, &symbol, &pos.Margin, &pos.Leverage, &pos.Size, &pos.EntryPrice, &pos.IsLong, &pos.OpenedAt, &pos.IsOpen, &pos.ClosedAt, &pos.ClosePrice, &pos.Profit)
	pos.Symbol = types.Symbol(symbol)
	return pos, err
}
