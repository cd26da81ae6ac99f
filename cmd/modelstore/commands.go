package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fystack/modelstore/pkg/modelstore"
	"github.com/fystack/modelstore/pkg/schema"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var printOptions = protojson.MarshalOptions{
	Multiline:       true,
	Indent:          "  ",
	EmitUnpopulated: true,
}

func printBuffers(buffers map[string]proto.Message) error {
	names := lo.Keys(buffers)
	sort.Strings(names)
	for _, name := range names {
		msg := buffers[name]
		body, err := printOptions.Marshal(msg)
		if err != nil {
			return fmt.Errorf("format buffer %q: %w", name, err)
		}
		fmt.Printf("== %s (%s)\n%s\n", name, schema.NameOf(msg), body)
	}
	return nil
}

func readComponent(ctx context.Context, c *cli.Command) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	buffers, err := a.store.Read(c.String("component"), c.String("party"), c.String("version"))
	if err != nil {
		return err
	}
	if len(buffers) == 0 {
		fmt.Println("no buffers found")
		return nil
	}
	return printBuffers(buffers)
}

func collectPipeline(ctx context.Context, c *cli.Command) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	buffers, err := a.store.Collect(c.String("party"), c.String("version"))
	if err != nil {
		return err
	}
	if len(buffers) == 0 {
		fmt.Println("no buffers found")
		return nil
	}
	return printBuffers(buffers)
}

func getMeta(ctx context.Context, c *cli.Command) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	kv, err := a.store.GetMeta(c.String("party"), c.String("version"))
	if err != nil {
		return err
	}
	keys := lo.Keys(kv)
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, kv[k])
	}
	return nil
}

func parseKeyValues(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one key=value is required")
	}
	kv := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value %q", arg)
		}
		kv[k] = v
	}
	return kv, nil
}

func setMeta(ctx context.Context, c *cli.Command) error {
	kv, err := parseKeyValues(c.Args().Slice())
	if err != nil {
		return err
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveMeta(kv, c.String("party"), c.String("version")); err != nil {
		return err
	}
	fmt.Printf("saved %d key(s)\n", len(kv))
	return nil
}

func listVersions(ctx context.Context, c *cli.Command) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	party := c.String("party")
	if version := c.String("version"); version != "" {
		entries, err := a.store.History(party, version)
		if errors.Is(err, modelstore.ErrHistoryNotSupported) {
			return fmt.Errorf("the %s version log cannot be listed, use watch", a.cfg.VersionLog.Backend)
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.CreatedAt.Format(time.RFC3339), e.Message)
		}
		return nil
	}

	versions, err := a.store.ModelVersions(party)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Printf("%s  partitions=%d  created=%s\n", v.Name, v.Partitions, v.CreatedAt)
	}
	return nil
}

func listSchemas(ctx context.Context, c *cli.Command) error {
	for _, name := range schema.Default().Names() {
		fmt.Println(name)
	}
	return nil
}
