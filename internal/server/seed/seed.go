// Package seed fills a database with random but plausible markets,
// receipts and items for load-testing the listing and statistics paths.
// Rows are written through the regular repositories.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
)

var (
	marketNames = []string{
		"Tesco", "Auchan", "Spar", "CBA", "Penny Market",
		"Lidl", "Aldi", "Interspar", "Coop", "Match",
	}
	cities = []string{
		"Budapest", "Debrecen", "Szeged", "Miskolc", "Pécs",
		"Győr", "Nyíregyháza", "Kecskemét", "Székesfehérvár", "Szombathely",
		"Szolnok", "Tatabánya", "Kaposvár", "Békéscsaba", "Zalaegerszeg",
	}
	streets = []string{
		"Fő utca", "Kossuth utca", "Petőfi utca", "Dózsa György utca", "Rákóczi utca",
		"Arany János utca", "Vörösmarty utca", "Széchenyi utca", "József Attila utca",
		"Móricz Zsigmond utca", "Bartók Béla utca", "Kodály Zoltán utca",
	}
	products = []string{
		"Kenyér", "Tej", "Tojás", "Sajt", "Sonka", "Csirke", "Marhahús",
		"Alma", "Banán", "Narancs", "Paradicsom", "Uborka", "Hagyma",
		"Krumpli", "Rizs", "Tészta", "Cukor", "Só", "Olaj", "Vaj",
		"Joghurt", "Kefir", "Túró", "Kolbász", "Virsli", "Bacon",
		"Brokkoli", "Sárgarépa", "Paprika", "Saláta", "Szőlő", "Körte",
		"Eper", "Cseresznye", "Sör", "Víz", "Üdítő", "Kávé", "Tea",
		"Csokoládé", "Keksz", "Chips", "Mosószer", "Fogkrém", "Sampon",
	}
)

const (
	// DefaultMinReceipts and DefaultMaxReceipts bound the receipt count when
	// Options.Receipts is zero.
	DefaultMinReceipts = 5000
	DefaultMaxReceipts = 10000
	DefaultBatchSize   = 100

	maxItemsPerReceipt = 10
	historyDays        = 730
	userPageSize       = 500
)

// ErrNoUsers is returned when there is nobody to own the receipts.
var ErrNoUsers = errors.New("no users found, create one with create-admin first")

// Options control one generation run. Zero values select the defaults.
type Options struct {
	Receipts  int
	BatchSize int
	Seed      uint64
	Now       time.Time
}

// Result counts the rows written.
type Result struct {
	Markets  int
	Receipts int
	Items    int
}

type Generator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewGenerator(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *Generator {
	return &Generator{db: db, repomanager: m, logger: logger}
}

// Run creates one market per known retailer name, each under a fresh tax
// number, then the receipts in batches of one transaction each. A failed
// batch stops the run; earlier batches stay committed.
func (g *Generator) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	rnd := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Receipts <= 0 {
		opts.Receipts = DefaultMinReceipts + rnd.IntN(DefaultMaxReceipts-DefaultMinReceipts+1)
	}

	owners, err := g.userIDs(ctx)
	if err != nil {
		return res, err
	}
	g.logger.Info(ctx, "found users", "count", len(owners))

	var marketIDs []int64
	if err := dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := g.repomanager.Markets(tx)
		for _, name := range marketNames {
			m, _, err := repo.GetOrCreate(ctx, name, taxNumber(rnd))
			if err != nil {
				return fmt.Errorf("market %s: %w", name, err)
			}
			marketIDs = append(marketIDs, m.ID)
		}
		return nil
	}); err != nil {
		return res, err
	}
	res.Markets = len(marketIDs)
	g.logger.Info(ctx, "markets created", "count", res.Markets)

	for done := 0; done < opts.Receipts; done += opts.BatchSize {
		n := min(opts.BatchSize, opts.Receipts-done)
		items := 0
		if err := dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			items = 0
			receiptRepo := g.repomanager.Receipts(tx)
			itemRepo := g.repomanager.Items(tx)
			for i := 0; i < n; i++ {
				seq := done + i + 1
				r, err := receiptRepo.Create(ctx, &models.Receipt{
					Date:             opts.Now.Add(-time.Duration(rnd.IntN(historyDays+1)) * 24 * time.Hour),
					ReceiptNumber:    fmt.Sprintf("#%06d", 100000+rnd.IntN(900000)),
					MarketID:         marketIDs[rnd.IntN(len(marketIDs))],
					UserID:           owners[rnd.IntN(len(owners))],
					ImagePath:        fmt.Sprintf("receipts/generated_%d.jpg", seq),
					OriginalFilename: fmt.Sprintf("receipt_%d.jpg", seq),
					Address:          address(rnd),
				})
				if err != nil {
					return fmt.Errorf("receipt %d: %w", seq, err)
				}
				for j := 1 + rnd.IntN(maxItemsPerReceipt); j > 0; j-- {
					if _, err := itemRepo.Create(ctx, &models.ReceiptItem{
						ReceiptID: r.ID,
						Name:      products[rnd.IntN(len(products))],
						UnitPrice: math.Round((100+rnd.Float64()*4900)*100) / 100,
						Quantity:  float64(1 + rnd.IntN(3)),
						Unit:      "db",
					}); err != nil {
						return fmt.Errorf("receipt %d item: %w", seq, err)
					}
					items++
				}
			}
			return nil
		}); err != nil {
			return res, err
		}
		res.Receipts += n
		res.Items += items
		g.logger.Info(ctx, "receipts created", "done", res.Receipts, "of", opts.Receipts)
	}

	return res, nil
}

func (g *Generator) userIDs(ctx context.Context) ([]int64, error) {
	repo := g.repomanager.Users(g.db)

	var ids []int64
	for page := (models.Page{Limit: userPageSize}); ; page.Skip += userPageSize {
		users, err := repo.List(ctx, models.UserFilter{}, page)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		if len(users) < userPageSize {
			break
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoUsers
	}
	return ids, nil
}

func taxNumber(rnd *rand.Rand) string {
	return fmt.Sprintf("%d-%d-%d", 10000000+rnd.IntN(90000000), 1+rnd.IntN(9), 10+rnd.IntN(90))
}

func address(rnd *rand.Rand) models.Address {
	return models.Address{
		PostalCode:   fmt.Sprintf("%d", 1000+rnd.IntN(9000)),
		City:         cities[rnd.IntN(len(cities))],
		StreetName:   streets[rnd.IntN(len(streets))],
		StreetNumber: fmt.Sprintf("%d", 1+rnd.IntN(200)),
	}
}
