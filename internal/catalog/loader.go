package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	json "github.com/goccy/go-json"
)

const (
	DefaultDataDragonURL = "https://ddragon.leagueoflegends.com/cdn"
	DefaultWikiURL       = "https://leagueoflegends.fandom.com/wiki"
	DefaultVersion       = "11.10.1"

	mythicPage    = "Mythic_item"
	legendaryPage = "Legendary_item"

	defaultLoaderTimeout = 30 * time.Second
)

// DDragonItem is the subset of a Data Dragon item entry we need
type DDragonItem struct {
	Name string `json:"name"`
	Gold struct {
		Total       int  `json:"total"`
		Purchasable bool `json:"purchasable"`
	} `json:"gold"`
}

// Champion is one Data Dragon champion entry
type Champion struct {
	ID     int    // numeric key used by the match API
	IDName string // Data Dragon id, also the icon file name
	Name   string
}

// Loader fetches the reference data a run depends on
type Loader struct {
	httpClient    *http.Client
	dataDragonURL string
	wikiURL       string
	version       string
	aliases       map[string]string
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithDataDragonURL overrides the Data Dragon CDN base (useful for testing)
func WithDataDragonURL(url string) LoaderOption {
	return func(l *Loader) {
		l.dataDragonURL = strings.TrimRight(url, "/")
	}
}

// WithWikiURL overrides the wiki base URL
func WithWikiURL(url string) LoaderOption {
	return func(l *Loader) {
		l.wikiURL = strings.TrimRight(url, "/")
	}
}

// WithVersion pins the Data Dragon version
func WithVersion(version string) LoaderOption {
	return func(l *Loader) {
		l.version = version
	}
}

// WithAliases replaces DefaultAliases
func WithAliases(aliases map[string]string) LoaderOption {
	return func(l *Loader) {
		l.aliases = aliases
	}
}

// WithHTTPClient sets the HTTP client used for all downloads
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = c
	}
}

// NewLoader creates a Loader with the given options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		httpClient:    &http.Client{Timeout: defaultLoaderTimeout},
		dataDragonURL: DefaultDataDragonURL,
		wikiURL:       DefaultWikiURL,
		version:       DefaultVersion,
		aliases:       DefaultAliases,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Version returns the Data Dragon version in use
func (l *Loader) Version() string {
	return l.version
}

// Load downloads items and tier pages and builds the catalog
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return nil, err
	}

	mythics, err := l.ScrapeItemNames(ctx, mythicPage)
	if err != nil {
		return nil, err
	}
	legendaries, err := l.ScrapeItemNames(ctx, legendaryPage)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string, len(items))
	for id, item := range items {
		names[id] = item.Name
	}

	cat, err := Build(names, legendaries, mythics, l.aliases)
	if err != nil {
		return nil, err
	}

	log.Printf("[Catalog] Loaded %d legendary and %d mythic items (Data Dragon %s)",
		len(cat.legendary), len(cat.mythic), l.version)
	return cat, nil
}

// Items fetches item.json keyed by numeric id
func (l *Loader) Items(ctx context.Context) (map[int]DDragonItem, error) {
	var result struct {
		Data map[string]DDragonItem `json:"data"`
	}
	url := fmt.Sprintf("%s/%s/data/en_US/item.json", l.dataDragonURL, l.version)
	if err := l.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch item data: %w", err)
	}

	items := make(map[int]DDragonItem, len(result.Data))
	for idStr, item := range result.Data {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		items[id] = item
	}
	return items, nil
}

// Champions fetches champion.json sorted by numeric id
func (l *Loader) Champions(ctx context.Context) ([]Champion, error) {
	var result struct {
		Data map[string]struct {
			ID   string `json:"id"`
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/%s/data/en_US/champion.json", l.dataDragonURL, l.version)
	if err := l.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch champion data: %w", err)
	}

	champions := make([]Champion, 0, len(result.Data))
	for _, entry := range result.Data {
		id, err := strconv.Atoi(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid champion key %q for %s", entry.Key, entry.ID)
		}
		champions = append(champions, Champion{ID: id, IDName: entry.ID, Name: entry.Name})
	}
	sort.Slice(champions, func(i, j int) bool { return champions[i].ID < champions[j].ID })
	return champions, nil
}

// ScrapeItemNames returns the lowercased item names listed on a wiki page.
// Items are rendered as <span data-item="..."> blocks.
func (l *Loader) ScrapeItemNames(ctx context.Context, page string) ([]string, error) {
	resp, err := l.get(ctx, l.wikiURL+"/"+page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wiki page %s: %w", page, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wiki page %s: %w", page, err)
	}

	seen := make(map[string]bool)
	var names []string
	doc.Find("span[data-item]").Each(func(_ int, s *goquery.Selection) {
		name := normalizeName(s.Text())
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})

	if len(names) == 0 {
		return nil, fmt.Errorf("no items found on wiki page %s", page)
	}
	return names, nil
}

// DownloadIcons stores item icons as {id}.png and champion icons as {IDName}.png
func (l *Loader) DownloadIcons(ctx context.Context, dir string, items []Item, champions []Champion) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create icon directory: %w", err)
	}

	for _, item := range items {
		url := fmt.Sprintf("%s/%s/img/item/%d.png", l.dataDragonURL, l.version, item.ID)
		if err := l.download(ctx, url, filepath.Join(dir, fmt.Sprintf("%d.png", item.ID))); err != nil {
			return err
		}
	}
	for _, champ := range champions {
		url := fmt.Sprintf("%s/%s/img/champion/%s.png", l.dataDragonURL, l.version, champ.IDName)
		if err := l.download(ctx, url, filepath.Join(dir, champ.IDName+".png")); err != nil {
			return err
		}
	}

	log.Printf("[Catalog] Downloaded %d item and %d champion icons to %s", len(items), len(champions), dir)
	return nil
}

func (l *Loader) download(ctx context.Context, url, path string) error {
	resp, err := l.get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func (l *Loader) getJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := l.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// get returns the response for a 200, the caller closes the body
func (l *Loader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return resp, nil
}
