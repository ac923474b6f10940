// Command watch follows a post thread from the terminal: it prints the
// comment tree, keeps time labels and like counters live, and can post a
// comment or toggle a like on the way in. Without -post it lists the feed of
// the active category.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"technobug/pkg/catalog"
	"technobug/pkg/client"
	"technobug/pkg/config"
	"technobug/pkg/envelope"
	"technobug/pkg/hub"
	"technobug/pkg/models"
	"technobug/pkg/notify"
	"technobug/pkg/settings"
	"technobug/pkg/thread"
	"technobug/pkg/timeago"
)

func main() {
	postID := flag.Int("post", 0, "id da postagem")
	comment := flag.String("comment", "", "comentário a enviar ao abrir")
	like := flag.Bool("like", false, "curtir/descurtir a postagem ao abrir")
	category := flag.String("category", "", "categoria ativa ao listar o feed")
	flag.Parse()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.PortalURL)
	if login := os.Getenv("PORTAL_LOGIN"); login != "" {
		if _, err := api.Login(ctx, login, os.Getenv("PORTAL_PASSWORD")); err != nil {
			log.Fatalf("[WATCH] login: %v", err)
		}
	}

	prefs := settings.NewMemory()
	if *category != "" {
		_ = prefs.Set(ctx, settings.ActiveCategory, *category)
	}
	if *postID <= 0 {
		if err := listFeed(ctx, api, prefs); err != nil {
			log.Fatalf("[WATCH] %s", client.MessageOf(err, err.Error()))
		}
		return
	}

	post, err := api.Thread(ctx, *postID)
	if err != nil {
		log.Fatalf("[WATCH] %s", client.MessageOf(err, err.Error()))
	}

	notes := notify.NewCenter(notify.DefaultTTL)
	notes.OnChange(func(toasts []notify.Toast) {
		if n := len(toasts); n > 0 {
			t := toasts[n-1]
			fmt.Printf("[%s] %s\n", t.Kind, t.Message)
		}
	})

	th := thread.New(post, api, notes, thread.ConfirmFunc(confirm))
	th.SetLimit(cfg.CommentMaxLength)
	th.OnRender(func() { render(th) })
	if err := th.LoadLikes(ctx); err != nil {
		log.Printf("[WATCH] curtidas: %v", err)
	}

	if *comment != "" {
		st := th.Input(*comment)
		_, _ = th.SubmitComment(ctx, st.Text)
	}
	if *like {
		_, _ = th.ToggleLikePost(ctx)
	}

	live, err := hub.NewClient(cfg.PortalURL, api.Token(), *postID)
	if err != nil {
		log.Fatalf("[WATCH] hub: %v", err)
	}
	live.OnEvent(func(env envelope.Envelope) {
		if env.Action == envelope.ReplyReceived {
			if c, err := envelope.ParseData[models.Comment](env); err == nil {
				notes.Info(c.Username + " respondeu ao seu comentário")
			}
		}
		th.ApplyEvent(env)
	})
	go live.Run(ctx)
	defer live.Close()

	timeago.NewRefresher(th.RefreshTimes).Run(ctx)
}

// listFeed prints the posts of the active category, newest first.
func listFeed(ctx context.Context, api *client.Client, prefs settings.Store) error {
	active := settings.GetOr(ctx, prefs, settings.ActiveCategory, catalog.All)
	filter := active
	if filter == catalog.All {
		filter = ""
	}
	posts, err := api.Feed(ctx, filter)
	if err != nil {
		return err
	}

	fmt.Printf("── %s · %d postagens ──\n", active, len(posts))
	now := time.Now()
	for _, p := range posts {
		fmt.Printf("#%d %s · %s · ♥ %d · %d comentários\n  %s\n",
			p.ID, p.Author, timeago.Format(p.CreatedAt, now), p.LikeCount, p.CommentCount, p.Content)
	}
	return nil
}

func confirm(message string) bool {
	fmt.Print(message + " [s/N] ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "s")
}

func render(th *thread.Thread) {
	if th.Deleted() {
		fmt.Println("Esta postagem foi removida.")
		return
	}
	likes, liked := th.PostLikes()
	mark := ""
	if liked {
		mark = " (você curtiu)"
	}
	fmt.Printf("\n── Post #%d · %d curtidas%s ──\n", th.PostID, likes, mark)

	if th.Empty() {
		fmt.Println("Nenhum comentário ainda. Seja o primeiro!")
		return
	}
	for _, c := range th.Comments() {
		printComment(&c, 0)
	}
}

func printComment(c *thread.CommentView, depth int) {
	indent := strings.Repeat("   ", depth)
	fmt.Printf("%s%s · %s · ♥ %d\n%s  %s\n", indent, c.Username, c.TimeLabel, c.LikeCount, indent, c.Content)
	for _, r := range c.Replies {
		printComment(r, depth+1)
	}
}
