package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/adapter/storage"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply MySQL migrations and load the built-in catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "seed",
				Usage: "insert the built-in products (existing ids are left alone)",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			var b backends
			defer b.close()
			db, err := b.mysql(c.Context, cfg)
			if err != nil {
				return err
			}

			if err := storage.Migrate(db.DB); err != nil {
				return err
			}
			logger.Info("migrations applied")

			if !c.Bool("seed") {
				return nil
			}
			products := catalog.SeedProducts()
			if err := storage.NewMySQLAdapter(db).SeedProducts(c.Context, products); err != nil {
				return errors.Wrap(err, "seed products")
			}
			logger.WithField("products", len(products)).Info("catalog seeded")
			return nil
		},
	}
}
