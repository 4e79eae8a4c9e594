package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/service"
)

// Runner 命令行动作，直接操作与服务端相同的存储
type Runner struct {
	lists     *service.ListManager
	namespace string
	out       io.Writer
	logger    *log.Logger
}

// NewRunner 创建命令行动作；命令行进程不承载订阅，变更不做推送
func NewRunner(repos *repository.Repositories, namespace string, out io.Writer, logger *log.Logger) *Runner {
	return &Runner{
		lists:     service.NewListManager(repos.MovieList, nil, logger),
		namespace: namespace,
		out:       out,
		logger:    logger,
	}
}

func (r *Runner) writeln(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// session 以 --owner 指定的身份建立会话
func (r *Runner) session(ctx context.Context, cmd *cli.Command) (*service.Session, error) {
	ns := cmd.String("namespace")
	if ns == "" {
		ns = r.namespace
	}
	sess := service.NewSession()
	sess.BeginAuth()
	owner := model.Owner{Namespace: ns, ID: cmd.String("owner")}
	if err := r.lists.ResolveSession(ctx, sess, owner); err != nil {
		return nil, err
	}
	return sess, nil
}

// Import 从 CSV 文件创建片单
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("需要指定一个 CSV 文件")
	}
	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	sess, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	list, err := r.lists.ImportCSV(ctx, sess, cmd.String("name"), string(data))
	if err != nil {
		return err
	}

	r.writeln("✓ 已创建片单 %s", list.Name)
	r.writeln("  ID: %s", list.ID)
	r.writeln("  影片: %d", len(list.Movies))
	return nil
}

// Lists 列出所有者名下全部片单
func (r *Runner) Lists(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	lists, err := r.lists.Lists(ctx, sess)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		r.writeln("暂无片单")
		return nil
	}
	for _, l := range lists {
		r.writeln("%s\t%s\t%d", l.ID, l.Name, len(l.Movies))
	}
	return nil
}

// Pick 从指定片单抽取今日影片
func (r *Runner) Pick(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.lists.Select(ctx, sess, cmd.String("list")); err != nil {
		return err
	}
	title, err := r.lists.Generate(ctx, sess)
	if err != nil {
		return err
	}
	r.writeln("%s", title)
	return nil
}

func ownerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Aliases:  []string{"o"},
			Usage:    "片单所有者 UID",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "namespace",
			Usage: "命名空间，默认取 APP_NAMESPACE",
		},
	}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "import",
			Usage:     "从 CSV 文件导入新片单（每行: 日期,标题,链接）",
			ArgsUsage: "FILE",
			Flags: append(ownerFlags(), &cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "片单名称",
				Required: true,
			}),
			Action: r.Import,
		},
		{
			Name:   "lists",
			Usage:  "列出全部片单",
			Flags:  ownerFlags(),
			Action: r.Lists,
		},
		{
			Name:  "pick",
			Usage: "从片单中随机抽取今日影片",
			Flags: append(ownerFlags(), &cli.StringFlag{
				Name:     "list",
				Aliases:  []string{"l"},
				Usage:    "片单 ID",
				Required: true,
			}),
			Action: r.Pick,
		},
	}
}
