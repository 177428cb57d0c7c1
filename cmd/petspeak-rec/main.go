// Command petspeak-rec is a terminal client that records a pet sound from
// the microphone, submits it to a petspeak server for interpretation, and
// can save the result to the account's history.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/petspeakapp/petspeak/internal/analyzer/remote"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/orchestrator"
	"github.com/petspeakapp/petspeak/pkg/capture"
	"github.com/petspeakapp/petspeak/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	serverURL := flag.String("server", "http://localhost:8080", "petspeak server base URL")
	userID := flag.String("user", "", "user ID for credit-gated analysis (empty runs anonymously)")
	language := flag.String("language", "en", "translation language code")
	animal := flag.String("animal", "dog", "animal type hint shown on saved recordings")
	deviceID := flag.String("device", "", "capture device ID (default device when empty)")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	lang := types.LanguageCode(*language)
	if !lang.IsValid() {
		fmt.Fprintf(os.Stderr, "petspeak-rec: unsupported language %q\n", *language)
		return 1
	}
	animalType := types.AnimalType(*animal)
	if !animalType.IsValid() {
		fmt.Fprintf(os.Stderr, "petspeak-rec: unknown animal type %q\n", *animal)
		return 1
	}

	audio, err := capture.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "petspeak-rec: audio init failed: %v\n", err)
		return 1
	}
	defer audio.Close()

	if *listDevices {
		devices, err := audio.Devices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "petspeak-rec: %v\n", err)
			return 1
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
		return 0
	}

	var recOpts []capture.RecorderOption
	if *deviceID != "" {
		device, err := findDevice(audio, *deviceID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "petspeak-rec: %v\n", err)
			return 1
		}
		recOpts = append(recOpts, capture.WithDevice(device))
	}
	recorder := capture.NewRecorder(audio, recOpts...)

	var analyzerOpts []remote.Option
	if *userID != "" {
		analyzerOpts = append(analyzerOpts, remote.WithUserID(*userID))
	}
	provider, err := remote.New(*serverURL, analyzerOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "petspeak-rec: %v\n", err)
		return 1
	}

	orcOpts := []orchestrator.Option{}
	var mirror *credit.Mirror
	if *userID != "" {
		ledger, err := credit.NewRemoteLedger(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "petspeak-rec: %v\n", err)
			return 1
		}
		mirror = credit.NewMirror(ledger, *userID)
		orcOpts = append(orcOpts, orchestrator.WithCredits(mirror))
	}
	orc := orchestrator.New(provider, orcOpts...)

	saver := newHistoryClient(*serverURL, *userID)

	m := newModel(recorder, orc, mirror, saver, lang, animalType)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "petspeak-rec: %v\n", err)
		return 1
	}
	return 0
}

// findDevice resolves a device ID against the enumerated capture devices.
func findDevice(audio capture.Context, id string) (*capture.DeviceInfo, error) {
	devices, err := audio.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].ID == id {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("capture device %q not found (try -list-devices)", id)
}
