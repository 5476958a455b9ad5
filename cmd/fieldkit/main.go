// main is the field client CLI: the headless counterpart of the mobile UI.
//
// It exercises the same client core packages the UI would (localstore,
// connectivity, api, syncengine) and exists for two audiences: developers
// poking at the sync flow, and evaluators on a laptop with no app.
//
//	fieldkit login <email> <password>   authenticate and store the token
//	fieldkit pull                       cache template + org hierarchy
//	fieldkit status                     connectivity belief and queue depth
//	fieldkit capture                    author and submit a demo visit
//	fieldkit drain                      push queued offline visits
//	fieldkit pdf <visit-id> <out.pdf>   download a visit report
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"storecheck/internal/completion"
	"storecheck/internal/config"
	"storecheck/internal/fieldkit/api"
	"storecheck/internal/fieldkit/authoring"
	"storecheck/internal/fieldkit/connectivity"
	"storecheck/internal/fieldkit/localstore"
	"storecheck/internal/fieldkit/syncengine"
	"storecheck/internal/models"

	"github.com/lmittmann/tint"
)

// tokenCacheKey stores the bearer token between runs.
const tokenCacheKey = "auth:token:v1"

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	store, err := localstore.Open(cfg.ClientDB)
	if err != nil {
		logger.Error("open local store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	client := api.New(cfg.APIBaseURL)
	var token string
	if err := store.GetCache(ctx, tokenCacheKey, &token); err == nil {
		client.SetToken(token)
	}

	probe := connectivity.NewProbe(
		strings.TrimRight(cfg.APIBaseURL, "/")+"/health", 5*time.Second)

	switch os.Args[1] {
	case "login":
		err = cmdLogin(ctx, store, client)
	case "pull":
		err = cmdPull(ctx, store, client)
	case "status":
		err = cmdStatus(ctx, store, probe)
	case "capture":
		err = cmdCapture(ctx, store, client, probe)
	case "drain":
		err = cmdDrain(ctx, store, client, probe, logger)
	case "pdf":
		err = cmdPDF(ctx, client)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(os.Args[1], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fieldkit <login|pull|status|capture|drain|pdf> [args]")
}

func cmdLogin(ctx context.Context, store *localstore.Store, client *api.Client) error {
	if len(os.Args) != 4 {
		return fmt.Errorf("usage: fieldkit login <email> <password>")
	}
	user, err := client.Login(ctx, os.Args[2], os.Args[3])
	if err != nil {
		return err
	}
	if err := store.PutCache(ctx, tokenCacheKey, client.Token()); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", user.Name, user.Role)
	return nil
}

// cmdPull refreshes every cache the offline flow depends on. Run it while
// connected, before heading somewhere that is not.
func cmdPull(ctx context.Context, store *localstore.Store, client *api.Client) error {
	items, err := client.Template(ctx)
	if err != nil {
		return fmt.Errorf("fetch template: %w", err)
	}
	if err := store.PutCache(ctx, "template:v1", items); err != nil {
		return err
	}

	regions, err := client.Regions(ctx)
	if err != nil {
		return fmt.Errorf("fetch regions: %w", err)
	}
	if err := store.PutCache(ctx, "regions:v1", regions); err != nil {
		return err
	}
	nDistricts, nStores := 0, 0
	for _, region := range regions {
		districts, err := client.Districts(ctx, region.ID)
		if err != nil {
			return fmt.Errorf("fetch districts for %s: %w", region.Name, err)
		}
		if err := store.PutCache(ctx, "districts:v1:"+region.ID, districts); err != nil {
			return err
		}
		nDistricts += len(districts)
		for _, district := range districts {
			stores, err := client.Stores(ctx, district.ID)
			if err != nil {
				return fmt.Errorf("fetch stores for %s: %w", district.Name, err)
			}
			if err := store.PutCache(ctx, "stores:v1:"+district.ID, stores); err != nil {
				return err
			}
			nStores += len(stores)
		}
	}
	fmt.Printf("cached %d checklist items, %d regions, %d districts, %d stores\n",
		len(items), len(regions), nDistricts, nStores)
	return nil
}

func cmdStatus(ctx context.Context, store *localstore.Store, probe *connectivity.Probe) error {
	online := probe.Check(ctx)
	n, err := store.QueueLen(ctx)
	if err != nil {
		return err
	}
	state := "offline"
	if online {
		state = "online"
	}
	fmt.Printf("%s, %d visit(s) queued\n", state, n)
	return nil
}

// cmdCapture runs one authoring session end to end: first region, first
// district, first store, a canned answer per checklist item, then submit.
// Online it lands on the server directly; offline it goes to the queue for
// the next drain. Useful for demos and for poking at the submit flow without
// the app.
func cmdCapture(ctx context.Context, store *localstore.Store, client *api.Client, probe *connectivity.Probe) error {
	probe.Check(ctx)

	session, err := authoring.New(ctx, store, client, probe, completion.DefaultThreshold)
	if err != nil {
		return err
	}

	regions, err := session.Regions(ctx)
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		return fmt.Errorf("no regions; run `fieldkit pull` or seed the server")
	}
	if err := session.SelectRegion(regions[0].ID); err != nil {
		return err
	}
	districts, err := session.Districts(ctx)
	if err != nil {
		return err
	}
	if len(districts) == 0 {
		return fmt.Errorf("region %s has no districts", regions[0].Name)
	}
	if err := session.SelectDistrict(districts[0].ID); err != nil {
		return err
	}
	stores, err := session.Stores(ctx)
	if err != nil {
		return err
	}
	if len(stores) == 0 {
		return fmt.Errorf("district %s has no stores", districts[0].Name)
	}
	if err := session.SelectStore(ctx, stores[0].ID); err != nil {
		return err
	}
	fmt.Printf("authoring a visit to %s / %s / %s\n",
		regions[0].Name, districts[0].Name, stores[0].Name)

	for _, it := range session.Template() {
		var answerErr error
		switch it.Type {
		case models.ItemBoolean:
			answerErr = session.SetAnswer(it.ID, models.BoolValue(true), "")
		case models.ItemText:
			answerErr = session.SetAnswer(it.ID, models.TextValue("Verified during demo walkthrough"), "")
		case models.ItemNumber:
			answerErr = session.SetAnswer(it.ID, models.NumberValue(4), "")
		case models.ItemPercentage:
			answerErr = session.SetAnswer(it.ID, models.PercentageValue(92.5), "")
		case models.ItemStatus:
			answerErr = session.SetAnswer(it.ID, models.TierValue(models.TierGreen), "")
		case models.ItemPhoto:
			answerErr = session.AttachPhoto(ctx, it.ID, "demo.jpg", "demo.jpg",
				strings.NewReader("demo photo bytes"))
		}
		if answerErr != nil {
			return fmt.Errorf("answer %s: %w", it.Title, answerErr)
		}
	}
	session.SetManagerName("Demo Manager")
	session.SetPlans("Cut waste 5%", "Greet within 30 seconds", "Restock before noon")
	session.SetComments("Captured by the fieldkit demo flow.")

	fmt.Printf("checklist %d%% complete\n", session.Progress())
	if err := session.SaveProgress(ctx); err != nil {
		return err
	}

	queued, err := session.Submit(ctx)
	if err != nil {
		return err
	}
	if queued {
		fmt.Println("offline: visit queued; run `fieldkit drain` once connected")
	} else {
		fmt.Println("visit submitted to the server")
	}
	return nil
}

func cmdDrain(ctx context.Context, store *localstore.Store, client *api.Client, probe *connectivity.Probe, logger *slog.Logger) error {
	if !probe.Check(ctx) {
		return fmt.Errorf("offline; queued visits will wait")
	}
	engine := syncengine.New(store, client, probe, logger)
	res, err := engine.DrainQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d visit(s)\n", res.Synced)
	for _, f := range res.Failed {
		fmt.Printf("  still queued %s: %v\n", f.ID, f.Err)
	}
	return nil
}

func cmdPDF(ctx context.Context, client *api.Client) error {
	if len(os.Args) != 4 {
		return fmt.Errorf("usage: fieldkit pdf <visit-id> <out.pdf>")
	}
	id, out := os.Args[2], os.Args[3]
	if strings.HasPrefix(id, models.OfflineIDPrefix) {
		return fmt.Errorf("%s is a queued offline visit; drain first, then export", id)
	}
	pdf, err := client.VisitPDF(ctx, id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(pdf))
	return nil
}
