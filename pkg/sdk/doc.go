// Package recall embeds the recall memory search engine in a Go program.
//
// A Client embeds the query text once, asks every configured store for its
// nearest records, and returns one ranked list. Stores that fail are left out
// of the result; an unavailable embedding provider yields an empty list.
//
//	client, err := recall.New(ctx,
//	    recall.WithWorkspace("/srv/agent"),
//	    recall.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "text-embedding-3-small"),
//	    recall.WithSQLiteStore("sessions", recall.CategorySessions, ".recall/memory.db"),
//	    recall.WithSQLiteStore("protocols", recall.CategoryProtocols, ".recall/memory.db"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	results, err := client.Search(ctx, "how did we fix the deploy",
//	    recall.WithMaxResults(5),
//	    recall.WithMinScore(0.4),
//	)
//
// A YAML file in the recall service format can be used instead of the store
// options:
//
//	client, err := recall.New(ctx, recall.WithConfigFile("config/local.yaml"))
package recall
