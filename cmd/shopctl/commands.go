package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/byceps/byceps-sub001/internal/services"
)

func runCreateBrand(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("create-brand", flag.ContinueOnError)
	var brand services.Brand
	fs.StringVar(&brand.ID, "brand-id", "", "brand id")
	fs.StringVar(&brand.Title, "title", "", "brand title")
	fs.StringVar(&brand.DefaultLocale, "locale", "en", "default email locale")
	fs.StringVar(&brand.EmailSender.Name, "sender-name", "", "email sender display name")
	fs.StringVar(&brand.EmailSender.Address, "sender-address", "", "email sender address")
	if err := parseFlags(fs, env, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{
		"brand-id":       brand.ID,
		"title":          brand.Title,
		"sender-address": brand.EmailSender.Address,
	}); err != nil {
		return err
	}

	container, release, err := env.container(ctx)
	if err != nil {
		return err
	}
	defer release()

	created, err := container.Services.Shops.CreateBrand(ctx, brand)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "created brand %s sending as %s\n", created.ID, created.EmailSender.Format())
	return nil
}

func runCreateShop(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("create-shop", flag.ContinueOnError)
	var cmd services.CreateShopCommand
	fs.StringVar(&cmd.ShopID, "shop-id", "", "shop id")
	fs.StringVar(&cmd.BrandID, "brand-id", "", "brand the shop belongs to")
	fs.StringVar(&cmd.Title, "title", "", "shop title")
	fs.StringVar(&cmd.Currency, "currency", "", "ISO 4217 currency code")
	fs.StringVar(&cmd.OrderNumberPrefix, "order-prefix", "", "order number prefix")
	fs.StringVar(&cmd.ArticleNumberPrefix, "article-prefix", "", "article number prefix")
	fs.StringVar(&cmd.StorefrontID, "storefront-id", "", "optional storefront to create")
	if err := parseFlags(fs, env, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{
		"shop-id":        cmd.ShopID,
		"brand-id":       cmd.BrandID,
		"title":          cmd.Title,
		"currency":       cmd.Currency,
		"order-prefix":   cmd.OrderNumberPrefix,
		"article-prefix": cmd.ArticleNumberPrefix,
	}); err != nil {
		return err
	}

	container, release, err := env.container(ctx)
	if err != nil {
		return err
	}
	defer release()

	setup, err := container.Services.Shops.CreateShop(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "created shop %s (%s)\n", setup.Shop.ID, setup.Shop.Currency)
	fmt.Fprintf(env.stdout, "order number sequence %s prefix %q\n", setup.OrderSequence.ID, setup.OrderSequence.Prefix)
	fmt.Fprintf(env.stdout, "article number sequence %s prefix %q\n", setup.ArticleSequence.ID, setup.ArticleSequence.Prefix)
	if setup.Storefront != nil {
		fmt.Fprintf(env.stdout, "storefront %s\n", setup.Storefront.ID)
	}
	return nil
}

func runRemoveUserSessions(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("remove-user-sessions", flag.ContinueOnError)
	userID := fs.String("user-id", "", "only remove this user's sessions")
	if err := parseFlags(fs, env, args); err != nil {
		return err
	}

	container, release, err := env.container(ctx)
	if err != nil {
		return err
	}
	defer release()

	sessions := container.Services.Sessions
	var removed int
	if *userID != "" {
		removed, err = sessions.RemoveSessionsForUser(ctx, *userID)
	} else {
		removed, err = sessions.RemoveAllSessions(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "removed %d session(s)\n", removed)
	return nil
}

func runExportOrder(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("export-order", flag.ContinueOnError)
	orderID := fs.String("order-id", "", "order to export")
	upload := fs.Bool("upload", false, "upload to the exports bucket instead of printing")
	if err := parseFlags(fs, env, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"order-id": *orderID}); err != nil {
		return err
	}

	container, release, err := env.container(ctx)
	if err != nil {
		return err
	}
	defer release()

	exports := container.Services.Exports
	if !*upload {
		data, err := exports.ExportOrder(ctx, *orderID)
		if err != nil {
			return err
		}
		_, err = env.stdout.Write(data)
		return err
	}

	object, err := exports.UploadExport(ctx, *orderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "uploaded %s\n", object)
	if links := container.Infrastructure.Links; links != nil {
		link, err := links.DownloadURL(ctx, object, downloadLinkTTL)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "download %s (expires %s)\n", link.URL, link.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func runGenerateOrderNumber(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("generate-order-number", flag.ContinueOnError)
	sequenceID := fs.String("sequence-id", "", "order number sequence")
	if err := parseFlags(fs, env, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"sequence-id": *sequenceID}); err != nil {
		return err
	}

	container, release, err := env.container(ctx)
	if err != nil {
		return err
	}
	defer release()

	number, err := container.Services.Sequences.GenerateOrderNumber(ctx, *sequenceID)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, number)
	return nil
}
