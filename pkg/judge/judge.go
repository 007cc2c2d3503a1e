package judge

import "context"

// Judge scores one answer against its question and contexts (§4.D,
// Judge interface in §6). Both returned scores are in [0,1].
type Judge interface {
	Judge(ctx context.Context, question string, contexts []string, answer string) (faithfulness, relevancy float64, err error)
}
