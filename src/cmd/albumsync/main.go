// Command albumsync ingests the local photo library into the device store
// and browses it, or the backend, by date and face.
//
//	albumsync ingest
//	albumsync list [YYYY-MM-DD]
//	albumsync faces
//	albumsync face <id>
//	albumsync remote [YYYY-MM-DD]
//	albumsync upload <file> [YYYY-MM-DD]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	app "albumserv/src/app"
	cfg "albumserv/src/configuration"
	"albumserv/src/logging"
	"albumserv/src/repository"

	"go.uber.org/zap"
)

func main() {
	config := cfg.ReadProperties()
	logger, err := logging.NewLogger(config.LogLevel, config.Development())
	if err != nil {
		log.Fatalf("can not create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], config, logger); err != nil {
		logger.Fatalf("albumsync: %v", err)
	}
}

func run(ctx context.Context, args []string, config *cfg.Properties, logger *zap.SugaredLogger) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command: ingest, list, faces, face, remote or upload")
	}
	if err := os.MkdirAll(filepath.Dir(config.Store.DevicePath), 0o755); err != nil {
		return err
	}
	kv, err := repository.NewSQLiteKV(config.Store.DevicePath)
	if err != nil {
		return err
	}
	defer kv.Close()
	store := repository.NewMediaStore(kv)

	opts := []app.PipelineOption{
		app.WithLogger(logger),
		app.WithMetadataExtractor(app.ExifExtractor{}),
	}
	if config.MLServer.Host != "" {
		opts = append(opts, app.WithFaceDetector(app.NewMLFaceDetector(config.MLServer.Host, config.MLServer.Timeout)))
	}
	pipeline := app.NewPipeline(store, opts...)
	source := app.NewDirectorySource(config.Client.LibraryDir)

	switch args[0] {
	case "ingest":
		records, err := pipeline.Ingest(ctx, source, func(done, total int) {
			logger.Debugf("ingested %d/%d", done, total)
		})
		logger.Infof("ingested %d records from %s", len(records), config.Client.LibraryDir)
		return err

	case "list":
		date, err := optionalDate(args, 1)
		if err != nil {
			return err
		}
		media, err := store.GetMediaByDate(ctx, date)
		if err != nil {
			return err
		}
		printMedia(media)

	case "faces":
		faces, err := store.GetAllFaces(ctx)
		if err != nil {
			return err
		}
		for _, f := range faces {
			fmt.Printf("%s\t%s\n", f.ID, f.MediaID)
		}

	case "face":
		if len(args) < 2 {
			return fmt.Errorf("face: missing face id")
		}
		media, err := store.GetMediaByFaceID(ctx, args[1])
		if err != nil {
			return err
		}
		printMedia(app.FilterByDate(media, nil))

	case "remote":
		date, err := optionalDate(args, 1)
		if err != nil {
			return err
		}
		state := &app.MediaState{}
		state.Refresh(ctx, newGateway(config, pipeline, source, logger), date)
		printMedia(state.Visible)

	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("upload: missing file")
		}
		date, err := optionalDate(args, 2)
		if err != nil {
			return err
		}
		file, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer file.Close()
		record, err := newGateway(config, pipeline, source, logger).UploadPhoto(ctx, app.UploadRequest{
			Content:      file,
			FileName:     filepath.Base(args[1]),
			SelectedDate: date,
		})
		if err != nil {
			return err
		}
		printMedia([]app.MediaRecord{record})

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func newGateway(config *cfg.Properties, pipeline *app.Pipeline, source app.Source, logger *zap.SugaredLogger) *app.PhotoGateway {
	return app.NewPhotoGateway(app.GatewayConfig{
		BaseURL:     config.Client.APIBaseURL,
		Timeout:     config.Client.Timeout,
		MaxFailures: config.Client.BreakerFailures,
		OpenTimeout: config.Client.BreakerTimeout,
	}, app.LocalFallback(pipeline, source), logger)
}

func optionalDate(args []string, i int) (*time.Time, error) {
	if len(args) <= i {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", args[i], time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", args[i], err)
	}
	return &t, nil
}

func printMedia(media []app.MediaRecord) {
	for _, m := range media {
		fmt.Printf("%s\t%s\t%s\t%d faces\t%s\n",
			m.Created(time.Local).Format(time.DateTime), m.MediaType, m.Filename, len(m.Faces), m.URI)
	}
}
