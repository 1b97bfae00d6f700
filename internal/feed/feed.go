package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Generator builds an RSS feed of the images saved in a vault.
type Generator struct {
	vault string
	link  string
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{
		vault: do.MustInvokeNamed[string](i, "vault"),
		link:  do.MustInvokeNamed[string](i, "feed_link"),
	}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("vault", g.vault)
	log.Info("generating rss feed")

	feed := feeds.Feed{
		Title:       "vaultimage",
		Description: "Generated images",
		Link:        &feeds.Link{Href: g.link},
		Updated:     time.Now(),
	}

	entries, err := os.ReadDir(g.vault)
	if err != nil {
		return nil, err
	}
	images := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".png") && !strings.HasPrefix(e.Name(), ".")
	})

	var mu sync.Mutex
	group, _ := errgroup.WithContext(ctx)
	for _, entry := range images {
		group.Go(func() error {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			item := &feeds.Item{
				Title:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
				Link:    &feeds.Link{Href: strings.TrimSuffix(g.link, "/") + "/" + entry.Name()},
				Updated: info.ModTime(),
			}

			mu.Lock()
			defer mu.Unlock()
			feed.Add(item)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.Before(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}
