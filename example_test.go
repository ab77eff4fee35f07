package ddns_test

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	ddns "github.com/Travis-Britz/imds-duckdns"
)

func ExampleNew() {
	c, err := ddns.New(
		"myhost",
		os.Getenv("DUCKDNS_TOKEN"),
		ddns.WithIPv6(false),
		ddns.WithLogger(logrus.NewEntry(logrus.StandardLogger())),
		ddns.UsingHTTPClient(http.DefaultClient),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	// run once:
	err = c.RunDDNS(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}

func ExampleReconciler_RunDaemon() {
	c, err := ddns.New("myhost", os.Getenv("DUCKDNS_TOKEN"),
		ddns.WithInterval(5*time.Minute),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}

	// check every 5 minutes and stop after an hour:
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
	defer cancel()
	c.RunDaemon(ctx)
}

func ExampleFromString() {
	// skip the metadata service, e.g. when testing a new token from a workstation
	static, err := ddns.FromString("203.0.113.5", "")
	if err != nil {
		log.Fatal(err)
	}
	c, err := ddns.New("myhost", os.Getenv("DUCKDNS_TOKEN"), ddns.UsingMetadata(static))
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	if err := c.RunDDNS(context.Background()); err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}
