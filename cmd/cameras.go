package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ucams-cli/internal/client"
	"ucams-cli/internal/frame"
	"ucams-cli/internal/logging"
	"ucams-cli/internal/naming"
	"ucams-cli/pkg/models"
)

// Variables to hold flag values
var (
	cameraID        string
	capabilityName  string
	outputFile      string
	fromStream      bool
	ffmpegBinary    string
	archiveStart    int64
	archiveDuration int
	archiveLast     time.Duration
	deviceTitle     string
)

// Parent Command
var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "Browse cameras",
	Long:  `List cameras, print stream and archive links, or save snapshots.`,
}

// List Command
var camerasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cameras",
	Run: func(cmd *cobra.Command, args []string) {
		entry := setupSessions()
		ctx, cancel := commandContext()
		defer cancel()

		cameras, err := entry.Cameras.ListCameras(ctx)
		exitOnError("fetching cameras", err)

		list := make([]models.Camera, 0, len(cameras))
		for _, cam := range cameras {
			list = append(list, cam)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

		// --- JSON OUTPUT ---
		if jsonOutput {
			printJSON(list)
			return
		}
		// -------------------

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tNAME\tADDRESS\tDVR")
		fmt.Fprintln(w, "--\t-----\t----\t-------\t---")

		for _, cam := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dh\n",
				cam.ID,
				cam.Title,
				entry.Cameras.BuildDeviceName(cam.Title),
				cam.Address,
				cam.DVRHours,
			)
		}
		w.Flush()
	},
}

// URL Command
var camerasURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print a stream or screenshot URL of a camera",
	Example: `  ucams-cli cameras url --id 1234567890ABCDEF
  ucams-cli cameras url --id 1234567890ABCDEF --type ws_stream`,
	Run: func(cmd *cobra.Command, args []string) {
		capability, err := client.ParseCapability(capabilityName)
		exitOnError("parsing --type", err)

		entry := setupSessions()
		ctx, cancel := commandContext()
		defer cancel()

		u, ok, err := entry.Cameras.CameraURL(ctx, cameraID, capability)
		exitOnError("building camera URL", err)
		if !ok {
			fmt.Printf("Error: camera %s not found.\n", cameraID)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(map[string]string{"id": cameraID, "type": string(capability), "url": u})
			return
		}
		fmt.Println(u)
	},
}

// Snapshot Command
var camerasSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save a JPEG snapshot of a camera",
	Long: `Downloads the current screenshot of a camera. With --from-stream the frame is
pulled from the live stream with ffmpeg instead; the same happens automatically
when the screenshot service fails.`,
	Example: `  ucams-cli cameras snapshot --id 1234567890ABCDEF --output door.jpg`,
	Run: func(cmd *cobra.Command, args []string) {
		entry := setupSessions()
		ctx, cancel := commandContext()
		defer cancel()

		if fromStream {
			fmt.Printf("Capturing a frame from the stream of camera %s ...\n", cameraID)
		} else {
			fmt.Printf("Requesting snapshot for camera %s ...\n", cameraID)
		}

		var capturer frame.Capturer = frame.NewFFmpeg(ffmpegBinary, 0)
		imgData, ok, err := takeSnapshot(ctx, entry.Cameras, capturer, cameraID, fromStream,
			logger.With(logging.CameraID(cameraID)))
		exitOnError("getting snapshot", err)
		if !ok {
			fmt.Printf("Error: camera %s not found.\n", cameraID)
			os.Exit(1)
		}

		if err := os.WriteFile(outputFile, imgData, 0644); err != nil {
			fmt.Printf("Error writing file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Snapshot saved to %s\n", outputFile)
	},
}

type snapshotSource interface {
	CameraImage(ctx context.Context, id string) ([]byte, bool, error)
	CameraURL(ctx context.Context, id string, capability client.Capability) (string, bool, error)
}

// takeSnapshot asks the screenshot service first and pulls a frame from the
// live stream when that service answers with an HTTP error. ok is false when
// the camera does not exist.
func takeSnapshot(ctx context.Context, src snapshotSource, capturer frame.Capturer, id string, fromStream bool, log *zap.Logger) ([]byte, bool, error) {
	if !fromStream {
		img, ok, err := src.CameraImage(ctx, id)
		var httpErr *client.HTTPError
		switch {
		case err == nil:
			return img, ok, nil
		case errors.As(err, &httpErr):
			log.Warn("screenshot failed, capturing from stream", logging.Status(httpErr.StatusCode))
		default:
			return nil, false, err
		}
	}

	streamURL, ok, err := src.CameraURL(ctx, id, client.CapabilityStream)
	if err != nil || !ok {
		return nil, ok, err
	}

	img, err := capturer.Capture(ctx, streamURL)
	if err != nil {
		return nil, true, fmt.Errorf("capturing frame: %w", err)
	}
	return img, true, nil
}

// Archive Command
var camerasArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Print a download link for a recorded window",
	Long: `Requests a download token for [start, start+duration) and prints the archive
link. Windows up to one hour are served as mp4, longer ones as MPEG-TS.`,
	Example: `  ucams-cli cameras archive --id 1234567890ABCDEF --last 5m
  ucams-cli cameras archive --id 1234567890ABCDEF --last 5h
  ucams-cli cameras archive --id 1234567890ABCDEF --start 1737292382 --seconds 3600`,
	Run: func(cmd *cobra.Command, args []string) {
		start, duration := archiveStart, archiveDuration
		if archiveLast > 0 {
			duration = int(archiveLast / time.Second)
			start = time.Now().Add(-archiveLast).Unix()
		}
		if start <= 0 || duration <= 0 {
			fmt.Println("Error: provide --last, or --start together with --seconds.")
			os.Exit(1)
		}

		entry := setupSessions()
		ctx, cancel := commandContext()
		defer cancel()

		link, ok, err := entry.Cameras.CameraArchive(ctx, cameraID, start, duration)
		exitOnError("requesting archive", err)
		if !ok {
			fmt.Printf("Error: no archive available for camera %s.\n", cameraID)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(link)
			return
		}

		fmt.Printf("From:     %s\n", time.Unix(link.Start, 0).Format(time.RFC3339))
		fmt.Printf("Duration: %s\n", time.Duration(link.Duration)*time.Second)
		fmt.Println(link.URL)
	},
}

// Name Command
var camerasNameCmd = &cobra.Command{
	Use:   "name",
	Short: "Print the device name and entity id derived from a title",
	Example: `  ucams-cli cameras name --title "Камера подъезд 1"`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadSettings().Account(accountName)
		exitOnError("loading account", err)

		name := naming.BuildDeviceName(cfg.Name, deviceTitle)
		if jsonOutput {
			printJSON(map[string]string{"name": name, "entity_id": naming.EntityID(name)})
			return
		}
		fmt.Printf("Name:      %s\nEntity ID: %s\n", name, naming.EntityID(name))
	},
}

func init() {
	// Register Parent
	rootCmd.AddCommand(camerasCmd)

	// Register Subcommands
	camerasCmd.AddCommand(camerasListCmd)
	camerasCmd.AddCommand(camerasURLCmd)
	camerasCmd.AddCommand(camerasSnapshotCmd)
	camerasCmd.AddCommand(camerasArchiveCmd)
	camerasCmd.AddCommand(camerasNameCmd)

	for _, c := range []*cobra.Command{camerasURLCmd, camerasSnapshotCmd, camerasArchiveCmd} {
		c.Flags().StringVar(&cameraID, "id", "", "Camera number")
		_ = c.MarkFlagRequired("id")
	}

	// Flags for URL
	camerasURLCmd.Flags().StringVar(&capabilityName, "type", "stream", "URL type: stream, ws_stream or screenshot")

	// Flags for Snapshot
	camerasSnapshotCmd.Flags().StringVar(&outputFile, "output", "snapshot.jpg", "Output filename")
	camerasSnapshotCmd.Flags().BoolVar(&fromStream, "from-stream", false, "Capture the frame from the live stream with ffmpeg")
	camerasSnapshotCmd.Flags().StringVar(&ffmpegBinary, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")

	// Flags for Archive
	camerasArchiveCmd.Flags().DurationVar(&archiveLast, "last", 0, "Window ending now, e.g. 5m, 1h, 5h")
	camerasArchiveCmd.Flags().Int64Var(&archiveStart, "start", 0, "Window start, unix seconds")
	camerasArchiveCmd.Flags().IntVar(&archiveDuration, "seconds", 300, "Window length in seconds (default 5 mins)")
	camerasArchiveCmd.MarkFlagsMutuallyExclusive("last", "start")

	// Flags for Name
	camerasNameCmd.Flags().StringVar(&deviceTitle, "title", "", "Camera or device title")
	_ = camerasNameCmd.MarkFlagRequired("title")
}
