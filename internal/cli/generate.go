package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"piawg/internal/dnspreset"
	"piawg/internal/pia"
	"piawg/internal/prefs"
	"piawg/internal/provision"
	"piawg/internal/qr"
	"piawg/internal/wgconf"
)

type generateOptions struct {
	Region    string
	DNS       string
	CustomDNS string
	Out       string
	Save      bool
	Dir       string
	Count     int
	QR        bool
	QRPNG     string
}

func NewGenerateCommand(global *globalOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Register a fresh key pair and write a WireGuard configuration",
		Long: "Generate registers a freshly generated key pair with a gateway of the chosen\n" +
			"region and prints the resulting configuration, or saves it with --out/--save.\n" +
			"Region and DNS default to the choices made last time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.check(); err != nil {
				return err
			}
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			token, err := a.token()
			if err != nil {
				return err
			}
			store, closeStore := a.openPrefs()
			defer closeStore()

			results, genErr := a.generate(ctx, store, token, opts)
			if err := emit(cmd, results, opts); err != nil {
				return err
			}
			return genErr
		},
	}

	cmd.Flags().StringVarP(&opts.Region, "region", "r", "", "region index or id (see `piawg regions`)")
	cmd.Flags().StringVar(&opts.DNS, "dns", "", "DNS preset ("+strings.Join(dnspreset.Names(), ", ")+") or an IP address")
	cmd.Flags().StringVar(&opts.CustomDNS, "custom-dns", "", "resolver for the custom preset (default "+dnspreset.Fallback+")")
	cmd.Flags().StringVarP(&opts.Out, "out", "O", "", "write the configuration to this file")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "write PIA-<region>.conf files")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory for --save")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of independent configurations")
	cmd.Flags().BoolVar(&opts.QR, "qr", false, "also print a terminal QR code")
	cmd.Flags().StringVar(&opts.QRPNG, "qr-png", "", "also write a QR code PNG to this file")
	return cmd
}

func (o *generateOptions) check() error {
	if o.Count < 1 {
		return errors.New("--count must be at least 1")
	}
	if o.Out != "" && o.Save {
		return errors.New("--out and --save are mutually exclusive")
	}
	if o.Count > 1 && (o.Out != "" || o.QRPNG != "") {
		return errors.New("--out and --qr-png take a single configuration; use --save with --count")
	}
	return nil
}

// generate returns every configuration produced, together with the error
// that stopped it early, if any.
func (a *app) generate(ctx context.Context, store prefs.Store, token string, opts *generateOptions) ([]provision.Result, error) {
	remembered := prefs.Load(ctx, store, a.log)

	preset, custom := opts.DNS, opts.CustomDNS
	if preset == "" {
		preset = remembered.DNSPreset
		if custom == "" {
			custom = remembered.CustomDNS
		}
	}
	dns, err := dnspreset.Resolve(preset, custom)
	if err != nil {
		return nil, err
	}

	regions, err := a.pipeline.Regions(ctx)
	if err != nil {
		return nil, err
	}
	region, idx, err := pia.FindRegion(regions, remembered.RegionKey(opts.Region))
	if err != nil {
		return nil, err
	}

	results, err := a.pipeline.ProvisionN(ctx, provision.Request{Token: token, Region: region, DNS: dns}, opts.Count)
	if len(results) > 0 {
		chosen := map[string]string{
			prefs.KeyRegionIndex: strconv.Itoa(idx),
			prefs.KeyRegionID:    region.ID,
		}
		if preset != "" {
			chosen[prefs.KeyDNSPreset] = preset
		}
		if custom != "" {
			chosen[prefs.KeyCustomDNS] = custom
		}
		prefs.Remember(ctx, store, a.log, chosen)
	}
	if err != nil && len(results) > 0 {
		a.log.WithError(err).Warnf("only %d of %d configurations generated", len(results), opts.Count)
	}
	return results, err
}

func emit(cmd *cobra.Command, results []provision.Result, opts *generateOptions) error {
	out := cmd.OutOrStdout()
	for i, res := range results {
		switch {
		case opts.Out != "":
			if err := wgconf.Save(opts.Out, res.Document); err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s\n", opts.Out)
		case opts.Save:
			path := filepath.Join(opts.Dir, numbered(res.Filename, i))
			if err := wgconf.Save(path, res.Document); err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s\n", path)
		default:
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, res.Document)
		}

		if opts.QR {
			if err := qr.Terminal(out, res.Document); err != nil {
				return err
			}
		}
		if opts.QRPNG != "" {
			if err := qr.WritePNG(opts.QRPNG, res.Document, qr.DefaultPNGSize); err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s\n", opts.QRPNG)
		}
	}
	return nil
}

// numbered keeps the first name and suffixes later ones: PIA-no.conf,
// PIA-no-2.conf, ...
func numbered(name string, i int) string {
	if i == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(i+1) + ext
}
