package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/acme/autocert"

	"population-map/pkg/api"
	"population-map/pkg/database"
	"population-map/pkg/database/drivers"
	"population-map/pkg/dataset"
	"population-map/pkg/logger"
	"population-map/pkg/qrshare"
	"population-map/pkg/webmap"
)

//go:embed public_html/*
var content embed.FS

var (
	csvPath      = flag.String("csv", "data/data_populasi.csv", "Path to the population CSV (columns: nama, lat, lon, populasi)")
	port         = flag.Int("port", 8765, "Port for running the server")
	domain       = flag.String("domain", "", "Use ports 80 and 443 with automatic HTTPS certs via Let's Encrypt")
	dbType       = flag.String("db-type", "sqlite", "Database driver for the location index: sqlite, genji, or pgx (PostgreSQL)")
	dbPath       = flag.String("db-path", "", "Path to the database file (sqlite/genji; sqlite defaults to in-memory)")
	dbHost       = flag.String("db-host", "127.0.0.1", "Database host (pgx driver)")
	dbPort       = flag.Int("db-port", 5432, "Database port (pgx driver)")
	dbUser       = flag.String("db-user", "postgres", "Database user (pgx driver)")
	dbPass       = flag.String("db-pass", "", "Database password (pgx driver)")
	dbName       = flag.String("db-name", "PopulationMap", "Database name (pgx driver)")
	pgSSLMode    = flag.String("pg-ssl-mode", "prefer", "PostgreSQL SSL mode: disable, allow, prefer, require, verify-ca, or verify-full")
	defaultLat   = flag.Float64("default-lat", webmap.FallbackLat, "Map latitude when the filtered data has no coordinates")
	defaultLon   = flag.Float64("default-lon", webmap.FallbackLon, "Map longitude when the filtered data has no coordinates")
	defaultZoom  = flag.Int("default-zoom", webmap.DefaultZoom, "Default map zoom")
	defaultLayer = flag.String("default-layer", webmap.DefaultLayerName, "Default base layer name from the basemap catalog")
	cacheTTL     = flag.Duration("cache-ttl", 30*time.Second, "API response cache TTL; 0 disables the cache")
	watchCSV     = flag.Bool("watch", false, "Reload the dataset when the CSV changes on disk")
	version      = flag.Bool("version", false, "Show the application version")
)

var CompileVersion = "dev"

var (
	db   *database.Database
	data *dataset.Snapshot
)

func init() {
	// Touch the drivers package so its blank imports register the SQL
	// backends before main opens a connection.
	drivers.Ready()
}

// =====================
// Translations
// =====================

var translations map[string]map[string]string

func loadTranslations(fsys embed.FS, filename string) {
	file, err := fsys.Open(filename)
	if err != nil {
		log.Fatalf("open translations: %v", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		log.Fatalf("read translations: %v", err)
	}
	if err := json.Unmarshal(raw, &translations); err != nil {
		log.Fatalf("parse translations: %v", err)
	}
}

// getPreferredLanguage picks the UI language from Accept-Language.
// The dataset is Indonesian, so "id" is first-class next to "en".
func getPreferredLanguage(r *http.Request) string {
	supported := map[string]struct{}{"en": {}, "id": {}}
	aliases := map[string]string{
		"in": "id", // obsolete ISO code still sent by some clients
	}

	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		lang := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if lang == "" {
			continue
		}
		if base, ok := aliases[lang]; ok {
			lang = base
		}
		if idx := strings.Index(lang, "-"); idx > 0 {
			lang = lang[:idx]
		}
		if _, ok := supported[lang]; ok {
			return lang
		}
	}
	return "en"
}

func translate(lang, key string) string {
	if val, ok := translations[lang][key]; ok {
		return val
	}
	return translations["en"][key]
}

// =====================
// WEB — map page
// =====================

func mapHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	lang := getPreferredLanguage(r)

	tmpl := template.Must(template.New("map.html").Funcs(template.FuncMap{
		"translate": func(key string) string { return translate(lang, key) },
		"toJSON": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			return template.JS(b), err
		},
	}).ParseFS(content, "public_html/map.html"))

	// POST form and GET query carry the same field names, so share
	// links reproduce the filtered view.
	filter := dataset.Filter{
		MinPopRaw: r.FormValue("min_pop"),
		Keyword:   r.FormValue("keyword"),
		Name:      r.FormValue("name"),
	}

	table := data.Current()
	view := webmap.Build(table.Apply(filter), translate(lang, "popup_population"),
		*defaultLat, *defaultLon, *defaultZoom)

	layer := *defaultLayer
	if !webmap.HasLayer(layer) {
		layer = webmap.DefaultLayerName
	}

	page := struct {
		View         webmap.View
		Layers       []webmap.TileLayer
		DefaultLayer string
		ClusterLayer string
		Names        []string
		MinPop       string
		Keyword      string
		SelectedName string
		ShareURL     string
		Lang         string
		Version      string
	}{
		View:         view,
		Layers:       webmap.BaseLayers(),
		DefaultLayer: layer,
		ClusterLayer: webmap.ClusterLayer,
		Names:        table.Names(),
		MinPop:       filter.MinPopRaw,
		Keyword:      filter.Keyword,
		SelectedName: filter.Name,
		ShareURL:     shareURL(r, filter),
		Lang:         lang,
		Version:      CompileVersion,
	}

	// Render to a buffer first so template errors do not leak a half
	// written page behind a 200 status.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		log.Printf("template: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		if isClientDisconnect(err) {
			log.Printf("client disconnected while writing response")
		} else {
			log.Printf("write response: %v", err)
		}
	}
}

// shareURL rebuilds the absolute URL of the current filtered view so the
// QR endpoint can encode it.
func shareURL(r *http.Request, f dataset.Filter) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	q := url.Values{}
	if strings.TrimSpace(f.MinPopRaw) != "" {
		q.Set("min_pop", f.MinPopRaw)
	}
	if f.Keyword != "" {
		q.Set("keyword", f.Keyword)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/", RawQuery: q.Encode()}
	return u.String()
}

// =====================
// WEB — share QR
// =====================

var qrLimiter = api.NewRateLimiter(time.Second)

func qrPngHandler(w http.ResponseWriter, r *http.Request) {
	// QR rendering costs real CPU, so it rides the heavy lane of the
	// same limiter the API uses.
	permit, err := qrLimiter.Acquire(r.Context(), clientIP(r), api.RequestHeavy)
	if err != nil {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	defer permit.Release()

	u := r.URL.Query().Get("u")
	if u == "" {
		if ref := r.Referer(); ref != "" {
			u = ref
		} else {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			u = scheme + "://" + r.Host + "/"
		}
	}
	if len(u) > 4096 {
		u = u[:4096]
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", `inline; filename="share.png"`)

	if err := qrshare.EncodePNG(w, u, qrshare.Options{TargetPx: 1024}); err != nil {
		http.Error(w, "QR encode: "+err.Error(), http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// =====================
// Dataset loading
// =====================

// reloadDataset loads the CSV and publishes it to both the in-memory
// snapshot and the SQL index. Detail lines buffer in the logger and only
// replay when the load fails.
func reloadDataset(ctx context.Context, jobID string) error {
	logger.Begin(jobID)
	logger.Append(jobID, fmt.Sprintf("[%s] loading %s", jobID, *csvPath))

	table, err := dataset.Load(*csvPath)
	if err != nil {
		logger.FlushError(jobID, err)
		return err
	}
	logger.Append(jobID, fmt.Sprintf("[%s] parsed %d rows, %d distinct names",
		jobID, table.Len(), len(table.Names())))

	rows := make([]database.Location, 0, table.Len())
	for _, l := range table.Rows {
		rows = append(rows, database.Location{
			Name:       l.Name,
			Lat:        nullFloat(l.Lat),
			Lon:        nullFloat(l.Lon),
			Population: nullFloat(l.Population),
		})
	}
	if err := db.Replace(ctx, rows); err != nil {
		logger.FlushError(jobID, err)
		return err
	}

	data.Replace(table)
	logger.Success(jobID, fmt.Sprintf("loaded %q (%d rows)", *csvPath, table.Len()))
	return nil
}

func nullFloat(v float64) (out sql.NullFloat64) {
	if v == v { // not NaN
		out.Float64 = v
		out.Valid = true
	}
	return
}

// =====================
// HTTP plumbing
// =====================

// withServerHeader stamps every response and answers HEAD / directly so
// load balancers get a cheap liveness probe.
func withServerHeader(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "population-map/"+CompileVersion)

		if r.Method == http.MethodHead && r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// serveWithDomain runs the usual pair of listeners:
//   - :80 answers ACME HTTP-01 challenges and redirects to https
//   - :443 serves the app with automatic Let's Encrypt certificates
//
// If autocert cannot mint a certificate for a host (raw IPs, odd SNI)
// the previously obtained certificate for the domain is served instead,
// so those clients get TLS errors about names rather than none at all.
func serveWithDomain(domain string, handler http.Handler) {
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("certs"),
		HostPolicy: func(ctx context.Context, host string) error {
			if host == domain || host == "www."+domain {
				return nil
			}
			if net.ParseIP(host) != nil {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	go func() {
		mux80 := http.NewServeMux()
		mux80.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
		mux80.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			target := "https://" + domain + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})

		log.Printf("HTTP  server (ACME+redirect) ➜ :80")
		if err := (&http.Server{
			Addr:              ":80",
			Handler:           mux80,
			ReadHeaderTimeout: 10 * time.Second,
		}).ListenAndServe(); err != nil {
			log.Printf("HTTP  server error: %v", err)
		}
	}()

	tlsCfg := certMgr.TLSConfig()

	var defaultCert *tls.Certificate
	go func() {
		for defaultCert == nil {
			if c, err := certMgr.GetCertificate(&tls.ClientHelloInfo{ServerName: domain}); err == nil {
				defaultCert = c
			}
			time.Sleep(time.Minute)
		}
	}()
	tlsCfg.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
		c, err := certMgr.GetCertificate(chi)
		if err == nil {
			return c, nil
		}
		if defaultCert != nil {
			return defaultCert, nil
		}
		return nil, err
	}

	log.Printf("HTTPS server for %s ➜ :443", domain)
	if err := (&http.Server{
		Addr:              ":443",
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}).ListenAndServeTLS("", ""); err != nil {
		log.Printf("HTTPS server error: %v", err)
	}
}

func isClientDisconnect(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// applyEnvDefaults lets a .env file (or the environment) stand in for
// flags the operator did not pass explicitly. Explicit flags win.
func applyEnvDefaults() {
	passed := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	for name, env := range map[string]string{
		"csv":           "POPULATION_MAP_CSV",
		"port":          "POPULATION_MAP_PORT",
		"domain":        "POPULATION_MAP_DOMAIN",
		"db-type":       "POPULATION_MAP_DB_TYPE",
		"db-path":       "POPULATION_MAP_DB_PATH",
		"db-host":       "POPULATION_MAP_DB_HOST",
		"db-port":       "POPULATION_MAP_DB_PORT",
		"db-user":       "POPULATION_MAP_DB_USER",
		"db-pass":       "POPULATION_MAP_DB_PASS",
		"db-name":       "POPULATION_MAP_DB_NAME",
		"default-layer": "POPULATION_MAP_DEFAULT_LAYER",
	} {
		if passed[name] {
			continue
		}
		if v := os.Getenv(env); v != "" {
			if err := flag.Set(name, v); err != nil {
				log.Printf("env %s: %v", env, err)
			}
		}
	}
}

// =====================
// MAIN
// =====================

// main parses flags, builds the location index, wires routes, then
// either serves plain HTTP on -port or, with -domain, the ACME-backed
// pair on :80/:443. Server errors are logged, never fatal; a final
// select{} keeps the main goroutine alive.
func main() {
	flag.Parse()
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}
	applyEnvDefaults()
	loadTranslations(content, "public_html/translations.json")

	if *version {
		fmt.Printf("population-map version %s\n", CompileVersion)
		return
	}

	if *domain != "" && runtime.GOOS != "windows" && os.Geteuid() != 0 {
		log.Println("⚠  Binding to :80 / :443 requires super-user rights; run with sudo or as root.")
	}

	var err error
	db, err = database.New(database.Config{
		DBType:    *dbType,
		DBPath:    *dbPath,
		DBHost:    *dbHost,
		DBPort:    *dbPort,
		DBUser:    *dbUser,
		DBPass:    *dbPass,
		DBName:    *dbName,
		PGSSLMode: *pgSSLMode,
		Port:      *port,
	})
	if err != nil {
		log.Fatalf("DB init: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		log.Fatalf("DB schema: %v", err)
	}

	data = dataset.NewSnapshot(nil)
	if err := reloadDataset(context.Background(), "load"); err != nil {
		log.Fatalf("dataset: %v", err)
	}

	if *watchCSV {
		watchCtx := context.Background()
		err := dataset.Watch(watchCtx, *csvPath, time.Second, func() {
			if err := reloadDataset(watchCtx, "reload"); err != nil {
				log.Printf("reload failed, keeping previous dataset: %v", err)
			}
		})
		if err != nil {
			log.Printf("watch disabled: %v", err)
		} else {
			log.Printf("watching %s for changes", *csvPath)
		}
	}

	staticFS, err := fs.Sub(content, "public_html")
	if err != nil {
		log.Fatalf("static fs: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/", mapHandler)
	mux.HandleFunc("/qrpng", qrPngHandler)

	apiHandler := api.NewHandler(db,
		api.NewResponseCache(*cacheTTL),
		api.NewRateLimiter(0),
		log.Printf,
	)
	apiHandler.Register(mux)

	rootHandler := withServerHeader(mux)

	if *domain != "" {
		go serveWithDomain(*domain, rootHandler)
	} else {
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			log.Printf("HTTP server ➜ http://localhost%s", addr)
			if err := http.ListenAndServe(addr, rootHandler); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	select {}
}
