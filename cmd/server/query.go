package main

import (
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "print one page of the filtered catalog as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category"},
			&cli.StringFlag{Name: "search"},
			&cli.StringFlag{Name: "min-price"},
			&cli.StringFlag{Name: "max-price"},
			&cli.IntFlag{Name: "page", Value: 1},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := setup(c)
			if err != nil {
				return err
			}

			var b backends
			defer b.close()
			repo, err := b.catalogRepository(c.Context, cfg)
			if err != nil {
				return err
			}
			ceiling := decimal.NewFromInt(cfg.PriceCeiling)
			svc, err := service.NewCatalogService(c.Context, repo, cfg.PageSize, ceiling)
			if err != nil {
				return err
			}

			f := svc.DefaultFilter()
			f.Category = c.String("category")
			f.Search = c.String("search")
			f.MinPrice = domain.ParseMinPrice(c.String("min-price"))
			f.MaxPrice = domain.ParseMaxPrice(c.String("max-price"), ceiling)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(svc.Query(c.Context, f, c.Int("page")))
		},
	}
}
