package service

import (
	"math/rand/v2"

	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
)

// GenerateMovieOfTheDay 从片单中等概率抽取一部影片，允许重复抽中
// intn 为空时使用 math/rand/v2
func GenerateMovieOfTheDay(list *model.MovieList, intn func(int) int) (string, error) {
	if list == nil || len(list.Movies) == 0 {
		return "", apperr.NoEligibleEntries()
	}
	if intn == nil {
		intn = rand.IntN
	}
	return list.Movies[intn(len(list.Movies))].Title, nil
}
