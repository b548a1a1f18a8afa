package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivanoskov/walla/internal/flow"
	"github.com/ivanoskov/walla/internal/groups"
)

func newRootCommand() *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "walla",
		Short: "Walla — клиент для поиска и создания групп совместных покупок",
	}

	cmd.PersistentFlags().BoolVar(&memory, "memory", false, "не сохранять данные между запусками")

	cmd.AddCommand(newRunCommand(&memory))
	cmd.AddCommand(newStatusCommand(&memory))
	cmd.AddCommand(newSignOutCommand(&memory))
	cmd.AddCommand(newNearbyCommand(&memory))
	cmd.AddCommand(newCreateGroupCommand(&memory))

	return cmd
}

func newRunCommand(memory *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Интерактивный вход и работа с группами",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*memory)
			if err != nil {
				return err
			}
			defer a.close()

			return flow.NewController(a.session, a.groups, os.Stdin, cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}

func newStatusCommand(memory *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Показать состояние сессии",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*memory)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Bootstrap(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Состояние: %s\n", a.session.State())
			if a.session.Authenticated() {
				p := a.session.Profile()
				fmt.Fprintf(cmd.OutOrStdout(), "Телефон: %s\nE-mail: %s\n", p.PhoneNumber, p.Email)
			}
			return nil
		},
	}
}

func newSignOutCommand(memory *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Выйти из аккаунта",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*memory)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			if err := a.session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Вы вышли из аккаунта")
			return nil
		},
	}
}

func newNearbyCommand(memory *bool) *cobra.Command {
	var lat, lng, km float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "Показать группы рядом с точкой",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*memory)
			if err != nil {
				return err
			}
			defer a.close()

			found, err := a.groups.Nearby(cmd.Context(), lat, lng, km)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Рядом групп не найдено")
				return nil
			}
			for _, g := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d участников\n", g.ID, g.Name, g.CurrentMemberCount)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "широта")
	cmd.Flags().Float64Var(&lng, "lng", 0, "долгота")
	cmd.Flags().Float64Var(&km, "km", 10, "радиус поиска в километрах")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")

	return cmd
}

func newCreateGroupCommand(memory *bool) *cobra.Command {
	var (
		params   groups.CreateParams
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "create-group",
		Short: "Создать новую группу",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*memory)
			if err != nil {
				return err
			}
			defer a.close()

			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("location requires both --lat and --lng")
			}
			if latSet {
				params.Latitude = &lat
				params.Longitude = &lng
			}

			group, err := a.groups.Create(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Группа «%s» создана (%s)\n", group.Name, group.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "название группы")
	cmd.Flags().StringVar(&params.Description, "description", "", "описание")
	cmd.Flags().BoolVar(&params.IsPrivate, "private", false, "закрытая группа")
	cmd.Flags().IntVar(&params.MaxMembers, "max-members", 0, "максимум участников (0 — без ограничения)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "широта")
	cmd.Flags().Float64Var(&lng, "lng", 0, "долгота")
	cmd.MarkFlagRequired("name")

	return cmd
}
