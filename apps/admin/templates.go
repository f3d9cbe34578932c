package main

import (
	"context"

	"github.com/Syed-Nuhad/school-web-sub000/core/notices"
)

func (cli *commandLine) seedTemplates(ctx context.Context, args []string) error {
	if err := parse(cli.newFlagSet("seed-templates"), args); err != nil {
		return err
	}
	for _, tpl := range notices.DefaultTemplates(cli.conf) {
		saved, err := cli.svcs.Comms.SaveTemplate(ctx, tpl)
		if err != nil {
			return err
		}
		cli.printf("Saved %s template %q (id %d).\n", saved.Kind, saved.Slug, saved.ID)
	}
	return nil
}
